package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/naivecynics/abc-utils/pkg/cleaner"
	"github.com/naivecynics/abc-utils/pkg/config"
	"github.com/naivecynics/abc-utils/pkg/converter"
	"github.com/naivecynics/abc-utils/pkg/database"
	"github.com/naivecynics/abc-utils/pkg/restore"
	"github.com/naivecynics/abc-utils/pkg/rotate"
	"github.com/naivecynics/abc-utils/pkg/scanner"
	"github.com/naivecynics/abc-utils/pkg/scheduler"
	"github.com/naivecynics/abc-utils/pkg/textnorm"
	"github.com/naivecynics/abc-utils/pkg/transpose"
	"github.com/naivecynics/abc-utils/pkg/util"
)

const usage = `Usage: abcutils <command> [flags]

Commands:
  clean       compact ABC headers for training (encode)
  restore     rebuild full headers from compacted ABC (decode)
  interleave  convert standard ABC to bar-interleaved form
  rtag        add [r:done/rest] position tags to body lines
  augment     transpose ABC files to all twelve major keys
  convert     run an external conversion chain (midi2abc, abc2xml, ...)
  collect     flatten-copy scores into one directory, optionally archive
  merge       merge several source trees, first name wins
  watch       watch a directory and rebuild abc -> musicxml -> pdf
`

func main() {
	// 1. 初始化日志器
	logger := log.New(os.Stdout, "[ABCUtils] ", log.LstdFlags|log.Lshortfile)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	// 2. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	ctx := context.Background()

	switch cmd {
	case "clean":
		err = runClean(ctx, cfg, logger, args)
	case "restore":
		err = runRestore(ctx, cfg, logger, args)
	case "interleave":
		err = runInterleave(ctx, cfg, logger, args)
	case "rtag":
		err = runRtag(ctx, cfg, logger, args)
	case "augment":
		err = runAugment(ctx, cfg, logger, args)
	case "convert":
		err = runConvert(ctx, cfg, logger, args)
	case "collect":
		err = runCollect(cfg, logger, args)
	case "merge":
		err = runMerge(cfg, logger, args)
	case "watch":
		err = runWatch(ctx, cfg, logger, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("Command %s failed: %v", cmd, err)
	}
}

// newRunner 组装批处理执行器；数据库打开失败时退回无存储模式
func newRunner(cfg *config.Config, name string, logger *log.Logger) (*scheduler.BatchRunner, func()) {
	errLog := filepath.Join(cfg.LogDir, name+"_error.log")
	store, err := database.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		logger.Printf("WARN: Could not open processed-file store, deduplication disabled: %v", err)
		return scheduler.NewBatchRunner(cfg.Workers, errLog, nil, logger), func() {}
	}
	return scheduler.NewBatchRunner(cfg.Workers, errLog, store, logger), func() { store.Close() }
}

// batchText 按扩展名收集输入文件并发执行文本到文本的转换
func batchText(ctx context.Context, cfg *config.Config, logger *log.Logger, name, inputDir, outputDir string,
	inExts []string, outSuffix string, fn func(text string) (string, error)) error {

	files, err := scanner.FindByExt(inputDir, inExts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files found in %s", inputDir)
	}
	logger.Printf("Found %d files. Processing...", len(files))

	tasks := make([]scheduler.Task, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(inputDir, f)
		if err != nil {
			rel = filepath.Base(f)
		}
		out := filepath.Join(outputDir, rel)
		out = strings.TrimSuffix(out, filepath.Ext(out)) + outSuffix
		tasks = append(tasks, scheduler.Task{Input: f, Output: out})
	}

	runner, closeStore := newRunner(cfg, name, logger)
	defer closeStore()

	done, failed := runner.Run(ctx, tasks, func(ctx context.Context, task scheduler.Task) error {
		text, err := util.ReadTextFileContent(task.Input)
		if err != nil {
			return err
		}
		out, err := fn(text)
		if err != nil {
			return err
		}
		return util.WriteTextFile(task.Output, out)
	})
	logger.Printf("%s complete: %d processed, %d failed.", name, done, failed)
	return nil
}

func runClean(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	inputDir := fs.String("i", "", "input directory containing ABC files")
	outputDir := fs.String("o", "", "output directory for compacted files")
	prepare := fs.Bool("prepare", false, "normalize text and drop metadata fields before compacting")
	fs.Parse(args)
	if *inputDir == "" || *outputDir == "" {
		return fmt.Errorf("both -i and -o are required")
	}

	c := cleaner.New(logger)
	var conv textnorm.TextConverter
	if *prepare {
		// 繁简转换器初始化失败不致命，跳过繁简折算继续
		if oc, err := textnorm.NewOpenCCConverter(logger); err != nil {
			logger.Printf("WARN: OpenCC unavailable, traditional Chinese text kept as-is: %v", err)
		} else {
			conv = oc
		}
	}
	return batchText(ctx, cfg, logger, "clean", *inputDir, *outputDir, []string{".abc", ".abci"}, ".abc",
		func(text string) (string, error) {
			if *prepare {
				prepared, err := c.Prepare(text, conv)
				if err != nil {
					return "", err
				}
				text = prepared
			}
			return c.Encode(text)
		})
}

func runRestore(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	inputDir := fs.String("i", "", "input directory containing compacted ABC files")
	outputDir := fs.String("o", "", "output directory for restored files")
	fs.Parse(args)
	if *inputDir == "" || *outputDir == "" {
		return fmt.Errorf("both -i and -o are required")
	}

	r := restore.New(logger)
	return batchText(ctx, cfg, logger, "restore", *inputDir, *outputDir, []string{".abc", ".abci"}, ".abc",
		func(text string) (string, error) { return r.Decode(text), nil })
}

func runInterleave(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("interleave", flag.ExitOnError)
	inputDir := fs.String("i", "", "input directory containing standard ABC files")
	outputDir := fs.String("o", "", "output directory for interleaved files")
	fs.Parse(args)
	if *inputDir == "" || *outputDir == "" {
		return fmt.Errorf("both -i and -o are required")
	}
	return batchText(ctx, cfg, logger, "interleave", *inputDir, *outputDir, []string{".abc"}, ".abci",
		func(text string) (string, error) { return rotate.Rotate(text) })
}

func runRtag(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("rtag", flag.ExitOnError)
	inputDir := fs.String("i", "", "input directory containing ABC files")
	outputDir := fs.String("o", "", "output directory for tagged files")
	fs.Parse(args)
	if *inputDir == "" || *outputDir == "" {
		return fmt.Errorf("both -i and -o are required")
	}
	return batchText(ctx, cfg, logger, "rtag", *inputDir, *outputDir, []string{".abc", ".abci"}, ".abc",
		func(text string) (string, error) { return rotate.TagRows(text), nil })
}

func runAugment(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("augment", flag.ExitOnError)
	inputDir := fs.String("i", "", "input directory containing source ABC files")
	outputDir := fs.String("o", "", "root output directory for augmented files")
	fs.Parse(args)
	if *inputDir == "" || *outputDir == "" {
		return fmt.Errorf("both -i and -o are required")
	}

	files, err := scanner.FindByExt(*inputDir, []string{".abc", ".abci"})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files found in %s", *inputDir)
	}
	logger.Printf("Found %d files. Augmenting to %d keys...", len(files), len(transpose.MajorKeys))

	// 每个 (文件, 调) 组合是一个独立任务
	var tasks []scheduler.Task
	for _, f := range files {
		base := filepath.Base(f)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		for _, key := range transpose.MajorKeys {
			out := filepath.Join(*outputDir, key, fmt.Sprintf("%s_%s.abc", stem, key))
			tasks = append(tasks, scheduler.Task{Input: f, Output: out})
		}
	}

	runner, closeStore := newRunner(cfg, "augment", logger)
	defer closeStore()

	done, failed := runner.Run(ctx, tasks, func(ctx context.Context, task scheduler.Task) error {
		key := filepath.Base(filepath.Dir(task.Output))
		text, err := util.ReadTextFileContent(task.Input)
		if err != nil {
			return err
		}
		transposed, err := transpose.Transpose(text, key)
		if err != nil {
			return err
		}
		return util.WriteTextFile(task.Output, transposed)
	})
	logger.Printf("augment complete: %d written, %d failed.", done, failed)
	return nil
}

func runConvert(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	inputDir := fs.String("i", "", "input directory")
	outputDir := fs.String("o", "", "final output directory")
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("convert needs a mode, available: %s", strings.Join(converter.ChainModes(), ", "))
	}
	mode := args[0]
	fs.Parse(args[1:])
	if *inputDir == "" || *outputDir == "" {
		return fmt.Errorf("both -i and -o are required")
	}

	tools := converter.NewToolRunner(cfg.MuseScorePath, cfg.PythonPath, cfg.ScriptDir, cfg.ConvertTime, logger)
	runner, closeStore := newRunner(cfg, "convert_"+mode, logger)
	defer closeStore()
	return tools.RunChain(ctx, mode, *inputDir, *outputDir, runner, logger)
}

func runCollect(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	inputDir := fs.String("i", "scores", "root directory to search")
	outputDir := fs.String("o", "collected", "destination directory")
	ext := fs.String("e", "abc", "file extension to include")
	sep := fs.String("s", "-", "separator replacing '/' in flattened names")
	archive := fs.String("archive", "", "also write a zstd JSONL archive to this path")
	fs.Parse(args)

	if _, err := scanner.FlattenCopy(*inputDir, *outputDir, *ext, *sep, logger); err != nil {
		return err
	}
	if *archive != "" {
		files, err := scanner.FindByExt(*outputDir, []string{"." + strings.TrimPrefix(*ext, ".")})
		if err != nil {
			return err
		}
		if _, err := scanner.WriteArchive(files, *archive, logger); err != nil {
			return err
		}
	}
	return nil
}

func runMerge(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	outputDir := fs.String("o", "merged", "destination directory")
	ext := fs.String("e", "mid", "file extension to include")
	fs.Parse(args)
	sources := fs.Args()
	if len(sources) == 0 {
		return fmt.Errorf("merge needs at least one source directory")
	}
	_, _, err := scanner.MergeDirs(sources, *outputDir, *ext, logger)
	return err
}

// runWatch 监听谱面目录，ABC 文件变化时经 MusicXML 重排为 PDF。
// 事件经去抖器合并，首次启动先把存量文件全部构建一遍。
func runWatch(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	srcDir := fs.String("src", ".", "source directory containing ABC files")
	outDir := fs.String("out", "./build", "output directory for rendered files")
	fs.Parse(args)

	tools := converter.NewToolRunner(cfg.MuseScorePath, cfg.PythonPath, cfg.ScriptDir, cfg.ConvertTime, logger)
	buildOne := func(abcPath string) {
		stem := strings.TrimSuffix(filepath.Base(abcPath), filepath.Ext(abcPath))
		xmlPath := filepath.Join(*outDir, stem+".musicxml")
		pdfPath := filepath.Join(*outDir, stem+".pdf")
		if err := tools.ABCToXML(ctx, abcPath, xmlPath); err != nil {
			logger.Printf("ERROR: %s: %v", abcPath, err)
			return
		}
		if err := tools.MuseScoreConvert(ctx, xmlPath, pdfPath); err != nil {
			logger.Printf("ERROR: %s: %v", xmlPath, err)
			return
		}
		logger.Printf("[OK] %s -> %s", abcPath, pdfPath)
	}

	// 先构建存量文件
	files, err := scanner.FindByExt(*srcDir, []string{".abc"})
	if err != nil {
		return err
	}
	logger.Printf("Discovered %d .abc files. Building...", len(files))
	for _, f := range files {
		buildOne(f)
	}

	// 再监听目录变化
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(*srcDir); err != nil {
		return fmt.Errorf("error watching %s: %w", *srcDir, err)
	}
	logger.Printf("Watching %s for ABC changes. Ctrl+C to quit.", *srcDir)

	debouncer := scheduler.NewDebouncer(cfg.DebounceDelay, logger)
	defer debouncer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if strings.ToLower(filepath.Ext(event.Name)) != ".abc" {
				continue
			}
			debouncer.Trigger(event.Name, buildOne)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("ERROR: Watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}
