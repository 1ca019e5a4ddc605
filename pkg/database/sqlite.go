package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// sqliteStore 是 FileStore 接口的 SQLite 实现
type sqliteStore struct {
	db     *sql.DB
	logger *log.Logger
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS processed_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

// NewSQLiteStore 初始化 SQLite 数据库并返回 FileStore 接口实例
func NewSQLiteStore(dataSourceName string, logger *log.Logger) (FileStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// 尝试创建表，如果不存在
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close() // 创建表失败也要关闭连接
		return nil, fmt.Errorf("failed to create processed_files table: %w", err)
	}
	logger.Printf("SQLite database initialized at: %s", dataSourceName)
	return &sqliteStore{db: db, logger: logger}, nil
}

// Close 关闭数据库连接
func (s *sqliteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.logger.Println("SQLite database connection closed.")
		return err
	}
	return nil
}

// MarkProcessed 将文件路径标记为已处理
func (s *sqliteStore) MarkProcessed(path string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO processed_files (path, processed_at) VALUES (?, ?)", path, time.Now())
	if err != nil {
		s.logger.Printf("ERROR: Failed to add %s to processed_files: %v", path, err)
		return fmt.Errorf("failed to mark %s as processed: %w", path, err)
	}
	return nil
}

// IsProcessed 检查文件路径是否已处理
func (s *sqliteStore) IsProcessed(path string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM processed_files WHERE path = ?", path).Scan(&count)
	if err != nil {
		s.logger.Printf("ERROR: Failed to check processed status for %s: %v", path, err)
		return false, fmt.Errorf("failed to check processed status for %s: %w", path, err)
	}
	return count > 0, nil
}
