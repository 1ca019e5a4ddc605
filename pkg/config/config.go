// Package config 从环境变量加载管线配置，缺省值取包内常量。
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir       string        `json:"data_dir"`        // SQLite 数据库文件存放目录
	DBFileName    string        `json:"db_file_name"`    // SQLite 数据库文件名
	DBPath        string        `json:"-"`               // 完整的数据库文件路径
	LogDir        string        `json:"log_dir"`         // 批处理错误日志目录
	MuseScorePath string        `json:"musescore_path"`  // MuseScore 可执行文件路径，空则自动探测
	PythonPath    string        `json:"python_path"`     // 运行 xml2abc.py / abc2xml.py 的解释器
	ScriptDir     string        `json:"script_dir"`      // EasyABC 转换脚本所在目录
	Workers       int           `json:"workers"`         // 批处理并发数
	ConvertTime   time.Duration `json:"convert_timeout"` // 单个外部转换的超时
	DebounceDelay time.Duration `json:"debounce_delay"`  // watch 模式下事件去抖延迟
}

const (
	dataDir    = "./data"
	logDir     = "./logs"
	dbFileName = "corpus.db"
	pythonPath = "python3"
	scriptDir  = "./EasyABC"

	convertTimeout = 3 * time.Minute
	debounceDelay  = 2 * time.Second
)

// LoadConfig 从环境变量或默认值加载配置
func LoadConfig() (*Config, error) {
	// 尝试加载 .env 文件
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:       os.Getenv("DATA_DIR"),
		DBFileName:    os.Getenv("DB_FILE_NAME"),
		LogDir:        os.Getenv("LOG_DIR"),
		MuseScorePath: os.Getenv("MUSESCORE"),
		PythonPath:    os.Getenv("PYTHON"),
		ScriptDir:     os.Getenv("SCRIPT_DIR"),
		Workers:       parseIntOrDefault(os.Getenv("WORKERS"), runtime.NumCPU()),
		ConvertTime:   parseDurationOrDefault(os.Getenv("CONVERT_TIMEOUT"), convertTimeout),
		DebounceDelay: parseDurationOrDefault(os.Getenv("DEBOUNCE_DELAY"), debounceDelay),
	}

	// 设置默认值
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.DBFileName == "" {
		cfg.DBFileName = dbFileName
	}
	if cfg.LogDir == "" {
		cfg.LogDir = logDir
	}
	if cfg.PythonPath == "" {
		cfg.PythonPath = pythonPath
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = scriptDir
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, cfg.DBFileName)
	// 确认目录存在
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.LogDir, err)
	}
	return cfg, nil
}

func parseDurationOrDefault(s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Warning: Could not parse duration '%s', using default '%v'. Error: %v", s, defaultValue, err)
		return defaultValue
	}
	return d
}

func parseIntOrDefault(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		log.Printf("Warning: Could not parse int '%s', using default '%d'.", s, defaultValue)
		return defaultValue
	}
	return n
}
