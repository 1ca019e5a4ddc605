// Package converter 封装外部谱面转换工具：
// MuseScore 命令行（MIDI/MusicXML/PDF/MP3 互转）与 EasyABC 的
// xml2abc.py / abc2xml.py 脚本，并把它们组合成多步转换链。
// 转换本身发生在子进程里，本包只做参数组装、超时控制与产物校验。
package converter

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// defaultMuseScorePaths 常见安装位置，按顺序探测
var defaultMuseScorePaths = []string{
	"/Applications/MuseScore 4.app/Contents/MacOS/mscore",
	"/Applications/MuseScore 3.app/Contents/MacOS/mscore",
	"/usr/bin/mscore",
	"/usr/local/bin/mscore",
}

// FindMuseScore 定位 MuseScore 可执行文件：
// 显式路径 > $MUSESCORE > 常见安装位置 > $PATH
func FindMuseScore(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
	}
	if env := os.Getenv("MUSESCORE"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
	}
	for _, p := range defaultMuseScorePaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if p, err := exec.LookPath("mscore"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("MuseScore CLI not found: set MUSESCORE or install mscore on PATH")
}

// ToolRunner 持有外部工具路径并执行单文件转换
type ToolRunner struct {
	museScore string
	python    string
	scriptDir string
	timeout   time.Duration
	logger    *log.Logger
}

// NewToolRunner 创建转换器。museScore 可为空，首次需要时再探测。
func NewToolRunner(museScore, python, scriptDir string, timeout time.Duration, logger *log.Logger) *ToolRunner {
	return &ToolRunner{
		museScore: museScore,
		python:    python,
		scriptDir: scriptDir,
		timeout:   timeout,
		logger:    logger,
	}
}

// run 执行一条外部命令，捕获 stderr 供出错时回显
func (t *ToolRunner) run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("timeout after %v: %s %s", t.timeout, name, strings.Join(args, " "))
		}
		return "", fmt.Errorf("%s failed: %w\n%s", filepath.Base(name), err, stderr.String())
	}
	return stdout.String(), nil
}

// MuseScoreConvert 用 MuseScore 做一次文件转换，目标格式由扩展名决定
func (t *ToolRunner) MuseScoreConvert(ctx context.Context, inPath, outPath string) error {
	if t.museScore == "" {
		ms, err := FindMuseScore("")
		if err != nil {
			return err
		}
		t.museScore = ms
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if _, err := t.run(ctx, t.museScore, "-o", outPath, inPath); err != nil {
		return err
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("MuseScore produced no output for %s", inPath)
	}
	return nil
}

// XMLToABC 调用 xml2abc.py 把 MusicXML 转成 ABC（脚本写到标准输出）
func (t *ToolRunner) XMLToABC(ctx context.Context, inPath, outPath string) error {
	script := filepath.Join(t.scriptDir, "xml2abc.py")
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("missing xml2abc.py at %s", script)
	}
	out, err := t.run(ctx, t.python, script, "-d", "8", "-c", "6", "-x", inPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("xml2abc.py produced no output for %s", inPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(outPath, []byte(out), 0644)
}

// ABCToXML 调用 abc2xml.py 把 ABC 转成 MusicXML
func (t *ToolRunner) ABCToXML(ctx context.Context, inPath, outPath string) error {
	script := filepath.Join(t.scriptDir, "abc2xml.py")
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("missing abc2xml.py at %s", script)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if _, err := t.run(ctx, t.python, script, inPath, "-o", filepath.Dir(outPath)); err != nil {
		return err
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("abc2xml.py produced no output for %s", inPath)
	}
	return nil
}
