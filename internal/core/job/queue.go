package job

import (
	"context"
	"sync"
	"sync/atomic"

	"meal-plan-generator/internal/infrastructure/metrics"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// Task 隊列中的工作
type Task struct {
	JobID string
	Run   func(ctx context.Context)
}

// QueueStatus 隊列狀態
type QueueStatus struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Queue 任務分派隊列，固定數量的 worker 依序取出執行
type Queue struct {
	queue     chan *Task
	done      chan struct{}
	workers   int
	maxSize   int
	processed int64
	wg        sync.WaitGroup
	once      sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewQueue 創建隊列並啟動 worker
func NewQueue(workers, maxSize int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		queue:   make(chan *Task, maxSize),
		done:    make(chan struct{}),
		workers: workers,
		maxSize: maxSize,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	return q
}

func (q *Queue) work(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case t := <-q.queue:
			metrics.SetQueueDepth(len(q.queue))
			q.runTask(id, t)
			atomic.AddInt64(&q.processed, 1)
		}
	}
}

func (q *Queue) runTask(worker int, t *Task) {
	defer func() {
		if r := recover(); r != nil {
			common.LogError("Job task panicked",
				zap.Int("worker", worker),
				zap.String("job_id", t.JobID),
				zap.Any("panic", r),
			)
		}
	}()
	t.Run(q.ctx)
}

// Enqueue 將工作加入隊列；已滿時回傳 ErrQueueFull
func (q *Queue) Enqueue(t *Task) error {
	select {
	case <-q.done:
		return common.ErrServiceUnavailable.WithMessage("job queue is closed")
	default:
	}

	select {
	case q.queue <- t:
		metrics.SetQueueDepth(len(q.queue))
		common.LogDebug("Job enqueued",
			zap.String("job_id", t.JobID),
			zap.Int("queue_length", len(q.queue)),
			zap.Int("max_queue_size", q.maxSize),
		)
		return nil
	default:
		return common.ErrQueueFull
	}
}

// Status 目前隊列狀態
func (q *Queue) Status() *QueueStatus {
	return &QueueStatus{
		QueueLength:    len(q.queue),
		ProcessedCount: int(atomic.LoadInt64(&q.processed)),
		MaxQueueSize:   q.maxSize,
		Workers:        q.workers,
	}
}

// Close 停止接收新工作，取消執行中的工作並等待 worker 結束
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.cancel()
	})
	q.wg.Wait()
}
