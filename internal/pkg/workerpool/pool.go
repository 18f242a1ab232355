package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/paulexconde/camperportal/internal/pkg/logger"
)

type Job func(ctx context.Context)

type WorkerPool struct {
	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    *logger.Logger
}

func NewWorkerPool(ctx context.Context, workerCount int, queueSize int, log *logger.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
		log:   log,
	}

	for range workerCount {
		pool.wg.Add(1)
		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("worker received shutdown signal")
			return
		case job, ok := <-p.queue:
			if !ok {
				// queue closed and drained
				return
			}
			job(ctx)
		}
	}
}

// Submit enqueues job without blocking. It reports false when the queue is full or
// the pool has been shut down.
func (p *WorkerPool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.log.Warn("worker pool is shut down, job dropped")
		return false
	}

	select {
	case p.queue <- job:
		return true
	default:
		p.log.Warn("worker pool queue full, job dropped", "queue_size", cap(p.queue))
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued jobs to finish or ctx to expire.
func (p *WorkerPool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.log.Warn("worker pool shutdown timed out")
	case <-done:
		p.log.Info("worker pool shutdown complete")
	}
}

func WithRetry(retries int, delay time.Duration, log *logger.Logger, job func(ctx context.Context) error) Job {
	return func(ctx context.Context) {
		for i := range retries {
			if ctx.Err() != nil {
				log.Warn("job canceled before execution")
				return
			}

			err := job(ctx)
			if err == nil {
				return
			}
			log.Warn("job failed", "attempt", i+1, "max_attempts", retries, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		log.Error("job failed after max retries", "max_attempts", retries)
	}
}
