package scanner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/naivecynics/abc-utils/pkg/util"
)

// ArchiveEntry 语料归档里的一条记录
type ArchiveEntry struct {
	Name string `json:"name"` // 不含扩展名的谱面名
	Text string `json:"text"` // 完整的 ABC 文本
}

// WriteArchive 把一组谱面文件打成 zstd 压缩的 JSONL 归档，
// 每行一条 ArchiveEntry。训练语料以单文件分发时用这个格式。
func WriteArchive(files []string, archivePath string, logger *log.Logger) (int, error) {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create archive directory: %w", err)
	}
	f, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive %s: %w", archivePath, err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	count := 0
	for _, path := range files {
		text, err := util.ReadTextFileContent(path)
		if err != nil {
			logger.Printf("ERROR: Failed to read %s: %v", path, err)
			continue
		}
		name := filepath.Base(path)
		name = name[:len(name)-len(filepath.Ext(name))]
		if err := enc.Encode(ArchiveEntry{Name: name, Text: text}); err != nil {
			zw.Close()
			return count, fmt.Errorf("failed to encode entry for %s: %w", path, err)
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return count, fmt.Errorf("failed to finalize archive: %w", err)
	}
	logger.Printf("Archived %d scores into %s.", count, archivePath)
	return count, nil
}

// ReadArchive 读回 zstd JSONL 归档里的所有记录
func ReadArchive(archivePath string) ([]ArchiveEntry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var entries []ArchiveEntry
	scan := bufio.NewScanner(zr)
	scan.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for scan.Scan() {
		var e ArchiveEntry
		if err := json.Unmarshal(scan.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("malformed archive entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return entries, nil
}
