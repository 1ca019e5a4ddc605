// Package scanner 负责语料目录的发现与归集：
// 按扩展名递归搜索、扁平化收集、多数据源合并去重。
package scanner

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindByExt 递归查找 root 下扩展名命中 exts 的文件，路径排序后返回
func FindByExt(root string, exts []string) ([]string, error) {
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extSet[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// FlattenCopy 把 root 下所有扩展名为 ext 的文件拷贝到 destDir，
// 相对路径里的分隔符替换为 sep 作为扁平文件名，返回拷贝数量
func FlattenCopy(root, destDir, ext, sep string, logger *log.Logger) (int, error) {
	ext = "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create destination %s: %w", destDir, err)
	}

	files, err := FindByExt(root, []string{ext})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = filepath.Base(f)
		}
		flatName := strings.ReplaceAll(rel, string(os.PathSeparator), sep)
		if err := copyFile(f, filepath.Join(destDir, flatName)); err != nil {
			logger.Printf("ERROR: Failed to copy %s: %v", f, err)
			continue
		}
		count++
	}
	logger.Printf("Copied %d '%s' files from %s to %s (separator=%q).", count, ext, root, destDir, sep)
	return count, nil
}

// MergeDirs 把多个来源目录里扩展名为 ext 的文件合并到 destDir。
// 同名文件只保留先到的那份（来源目录顺序即优先级），
// 返回每个来源的独有文件数与重名冲突数。
func MergeDirs(sources []string, destDir, ext string, logger *log.Logger) (copied, dupes int, err error) {
	ext = "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, 0, fmt.Errorf("failed to create destination %s: %w", destDir, err)
	}

	seen := make(map[string]bool)
	for _, src := range sources {
		files, err := FindByExt(src, []string{ext})
		if err != nil {
			logger.Printf("WARN: skipping source %s: %v", src, err)
			continue
		}
		for _, f := range files {
			name := filepath.Base(f)
			if seen[name] {
				dupes++
				continue
			}
			if err := copyFile(f, filepath.Join(destDir, name)); err != nil {
				logger.Printf("ERROR: Failed to copy %s: %v", f, err)
				continue
			}
			seen[name] = true
			copied++
		}
	}
	logger.Printf("Merge complete: %d files copied to %s, %d duplicate names skipped.", copied, destDir, dupes)
	return copied, dupes, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
