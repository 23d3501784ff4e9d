package utils

import (
	"sync"

	"go.uber.org/zap"
)

// WorkerPool runs submitted jobs on a fixed set of goroutines. Handlers
// use it for fire-and-forget work such as broker publishes, so a slow
// broker backs up the queue instead of spawning unbounded goroutines.
type WorkerPool struct {
	jobs   chan func()
	num    int
	wg     sync.WaitGroup
	quit   chan struct{}
	logger *zap.Logger
}

func NewWorkerPool(workerNum, queueSize int, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		jobs:   make(chan func(), queueSize),
		num:    workerNum,
		quit:   make(chan struct{}),
		logger: logger,
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.num; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobs:
					p.run(workerID, job)
				case <-p.quit:
					return
				}
			}
		}(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.num))
}

// run isolates a job so a panic kills neither the worker nor the pool.
func (p *WorkerPool) run(workerID int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker recovered from panic",
				zap.Int("worker_id", workerID),
				zap.Any("panic", r))
		}
	}()
	job()
}

// Submit enqueues a job, blocking while the queue is full.
func (p *WorkerPool) Submit(job func()) {
	p.jobs <- job
}

// TrySubmit enqueues a job if the queue has room.
func (p *WorkerPool) TrySubmit(job func()) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

func (p *WorkerPool) Stop() {
	close(p.quit)
	p.wg.Wait()
}
