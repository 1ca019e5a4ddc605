package converter

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/naivecynics/abc-utils/pkg/rotate"
	"github.com/naivecynics/abc-utils/pkg/scanner"
	"github.com/naivecynics/abc-utils/pkg/scheduler"
	"github.com/naivecynics/abc-utils/pkg/util"
)

// Step 转换链里的一步：输入扩展名集合、输出扩展名与单文件转换函数
type Step struct {
	Name      string
	InExts    []string
	OutSuffix string
	Fn        scheduler.TaskFunc
}

var xmlExts = []string{".xml", ".mxl", ".musicxml"}

// Steps 返回所有可用的单步转换
func (t *ToolRunner) Steps() map[string]Step {
	return map[string]Step{
		"midi2xml": {
			Name: "midi2xml", InExts: []string{".mid", ".midi"}, OutSuffix: ".mxl",
			Fn: func(ctx context.Context, task scheduler.Task) error {
				return t.MuseScoreConvert(ctx, task.Input, task.Output)
			},
		},
		"xml2midi": {
			Name: "xml2midi", InExts: xmlExts, OutSuffix: ".mid",
			Fn: func(ctx context.Context, task scheduler.Task) error {
				return t.MuseScoreConvert(ctx, task.Input, task.Output)
			},
		},
		"xml2abc": {
			Name: "xml2abc", InExts: xmlExts, OutSuffix: ".abc",
			Fn: func(ctx context.Context, task scheduler.Task) error {
				return t.XMLToABC(ctx, task.Input, task.Output)
			},
		},
		"abc2xml": {
			Name: "abc2xml", InExts: []string{".abc", ".abci"}, OutSuffix: ".xml",
			Fn: func(ctx context.Context, task scheduler.Task) error {
				return t.ABCToXML(ctx, task.Input, task.Output)
			},
		},
		// 交错与还原在进程内完成，不走外部工具
		"abc2abci": {
			Name: "abc2abci", InExts: []string{".abc"}, OutSuffix: ".abci",
			Fn: func(ctx context.Context, task scheduler.Task) error {
				text, err := util.ReadTextFileContent(task.Input)
				if err != nil {
					return err
				}
				rotated, err := rotate.Rotate(text)
				if err != nil {
					return err
				}
				return util.WriteTextFile(task.Output, rotated)
			},
		},
		"abci2abc": {
			Name: "abci2abc", InExts: []string{".abci"}, OutSuffix: ".abc",
			Fn: func(ctx context.Context, task scheduler.Task) error {
				text, err := util.ReadTextFileContent(task.Input)
				if err != nil {
					return err
				}
				return util.WriteTextFile(task.Output, rotate.Unrotate(text))
			},
		},
	}
}

// Chains 各转换模式对应的步骤序列
var Chains = map[string][]string{
	"midi2xml":  {"midi2xml"},
	"xml2midi":  {"xml2midi"},
	"xml2abc":   {"xml2abc"},
	"abc2xml":   {"abc2xml"},
	"abc2abci":  {"abc2abci"},
	"abci2abc":  {"abci2abc"},
	"midi2abc":  {"midi2xml", "xml2abc"},
	"abc2midi":  {"abc2xml", "xml2midi"},
	"midi2abci": {"midi2xml", "xml2abc", "abc2abci"},
	"abci2midi": {"abci2abc", "abc2xml", "xml2midi"},
	"xml2abci":  {"xml2abc", "abc2abci"},
	"abci2xml":  {"abc2xml"},
}

// ChainModes 返回排序稳定的可用模式列表，供 CLI 帮助信息使用
func ChainModes() []string {
	modes := make([]string, 0, len(Chains))
	for m := range Chains {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

// RunChain 按模式执行多步转换：中间步骤写入临时目录，
// 最后一步写入目标目录。单个文件失败不影响链上其他文件。
func (t *ToolRunner) RunChain(ctx context.Context, mode, inputDir, outputDir string, runner *scheduler.BatchRunner, logger *log.Logger) error {
	chain, ok := Chains[mode]
	if !ok {
		return fmt.Errorf("invalid mode %q, available: %s", mode, strings.Join(ChainModes(), ", "))
	}
	steps := t.Steps()

	tempRoot, err := os.MkdirTemp("", "abcutils-chain-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempRoot)

	curInput := inputDir
	for i, stepName := range chain {
		step := steps[stepName]
		logger.Printf("--- Running step %d/%d: %s ---", i+1, len(chain), stepName)

		curOutput := outputDir
		if i < len(chain)-1 {
			curOutput = filepath.Join(tempRoot, fmt.Sprintf("step_%d", i+1))
		}

		files, err := scanner.FindByExt(curInput, step.InExts)
		if err != nil {
			return fmt.Errorf("step %s: %w", stepName, err)
		}
		if len(files) == 0 {
			return fmt.Errorf("step %s: no input files found in %s", stepName, curInput)
		}

		tasks := make([]scheduler.Task, 0, len(files))
		for _, f := range files {
			rel, err := filepath.Rel(curInput, f)
			if err != nil {
				rel = filepath.Base(f)
			}
			out := filepath.Join(curOutput, rel)
			out = strings.TrimSuffix(out, filepath.Ext(out)) + step.OutSuffix
			tasks = append(tasks, scheduler.Task{Input: f, Output: out})
		}

		done, failed := runner.Run(ctx, tasks, step.Fn)
		logger.Printf("Step %s complete: %d converted, %d failed.", stepName, done, failed)
		if done == 0 {
			return fmt.Errorf("step %s: all %d files failed", stepName, len(tasks))
		}
		curInput = curOutput
	}
	return nil
}
