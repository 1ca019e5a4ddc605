package database

// FileStore 定义已处理文件状态存储接口，
// 批处理跨多次运行时据此跳过已转换的文件
type FileStore interface {
	MarkProcessed(path string) error      // 将文件路径标记为已处理
	IsProcessed(path string) (bool, error) // 检查文件路径是否已处理
	Close() error                          // 关闭数据库连接
}
