// Package scheduler 负责批处理任务的并发调度：
// 固定大小的 worker 池逐文件分发任务，单个文件失败只记日志不终止整批；
// watch 模式下提供事件去抖，避免文件尚在写入时就触发处理。
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/naivecynics/abc-utils/pkg/database"
)

// Task 一次批处理中的单个文件任务
type Task struct {
	Input  string
	Output string
}

// TaskFunc 处理单个任务，失败返回错误（只影响该文件）
type TaskFunc func(ctx context.Context, task Task) error

// BatchRunner 并发批处理执行器
type BatchRunner struct {
	workers    int
	errLogPath string
	store      database.FileStore // 可为 nil，此时不做跨运行去重
	logger     *log.Logger

	errMutex sync.Mutex // 保护错误日志文件的追加写
}

// NewBatchRunner 创建一个批处理执行器。
// store 传 nil 则只按输出文件是否存在去重。
func NewBatchRunner(workers int, errLogPath string, store database.FileStore, logger *log.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{
		workers:    workers,
		errLogPath: errLogPath,
		store:      store,
		logger:     logger,
	}
}

// Run 把任务分发给 worker 池执行，返回成功与失败的数量。
// 输出文件已存在或数据库里已标记处理过的任务直接跳过；
// 任一文件的失败都不会中断其他文件。
func (r *BatchRunner) Run(ctx context.Context, tasks []Task, fn TaskFunc) (done, failed int) {
	taskCh := make(chan Task)
	var wg sync.WaitGroup
	var mu sync.Mutex // 保护计数

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				if r.shouldSkip(task) {
					continue
				}
				if err := r.runOne(ctx, task, fn); err != nil {
					r.logger.Printf("ERROR: %s: %v", task.Input, err)
					r.appendErrLog(task.Input, err)
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				if r.store != nil {
					if err := r.store.MarkProcessed(task.Input); err != nil {
						r.logger.Printf("ERROR: Failed to record %s as processed: %v", task.Input, err)
					}
				}
				mu.Lock()
				done++
				mu.Unlock()
			}
		}()
	}

loop:
	for _, task := range tasks {
		select {
		case taskCh <- task:
		case <-ctx.Done():
			break loop
		}
	}
	close(taskCh)
	wg.Wait()
	return done, failed
}

// runOne 执行单个任务并吸收 panic，保证坏文件不拖垮整批
func (r *BatchRunner) runOne(ctx context.Context, task Task, fn TaskFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing: %v", p)
		}
	}()
	return fn(ctx, task)
}

func (r *BatchRunner) shouldSkip(task Task) bool {
	if task.Output != "" {
		if _, err := os.Stat(task.Output); err == nil {
			return true
		}
	}
	if r.store != nil {
		processed, err := r.store.IsProcessed(task.Input)
		if err != nil {
			r.logger.Printf("ERROR: Error checking processed status for %s: %v", task.Input, err)
			// 查询失败也继续处理，避免遗漏
			return false
		}
		return processed
	}
	return false
}

// appendErrLog 把失败记录追加到错误日志文件，方便事后重跑
func (r *BatchRunner) appendErrLog(input string, taskErr error) {
	if r.errLogPath == "" {
		return
	}
	r.errMutex.Lock()
	defer r.errMutex.Unlock()
	if err := os.MkdirAll(filepath.Dir(r.errLogPath), 0755); err != nil {
		r.logger.Printf("ERROR: Failed to create error log directory: %v", err)
		return
	}
	f, err := os.OpenFile(r.errLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		r.logger.Printf("ERROR: Failed to open error log %s: %v", r.errLogPath, err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s  Error processing %s: %v\n", time.Now().Format("2006-01-02 15:04:05"), input, taskErr)
}

// Debouncer 文件系统事件去抖器：同一路径的事件在延迟窗口内
// 合并成一次回调，窗口内再次触发会重置计时器
type Debouncer struct {
	delay   time.Duration
	logger  *log.Logger
	pending map[string]*time.Timer
	mutex   sync.Mutex // 保护 pending map
}

// NewDebouncer 创建一个去抖器
func NewDebouncer(delay time.Duration, logger *log.Logger) *Debouncer {
	return &Debouncer{
		delay:   delay,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// Trigger 调度 path 的延迟处理；延迟窗口内重复触发会重置计时器
func (d *Debouncer) Trigger(path string, fn func(path string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if timer, ok := d.pending[path]; ok {
		timer.Stop()
	}
	timer := time.AfterFunc(d.delay, func() {
		fn(path)
		d.mutex.Lock()
		delete(d.pending, path)
		d.mutex.Unlock()
	})
	d.pending[path] = timer
	d.logger.Printf("Scheduled processing for %s in %v", path, d.delay)
}

// Stop 取消所有待触发的回调
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for path, timer := range d.pending {
		timer.Stop()
		delete(d.pending, path)
	}
}
