package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// Task is a unit of background work. The context is cancelled when the
// pool is closed with Stop.
type Task func(ctx context.Context)

// WorkerPool runs tasks on a fixed number of goroutines fed by a bounded queue.
type WorkerPool struct {
	name  string
	tasks chan Task

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorkerPool starts workers goroutines reading from a queue of the given size.
func NewWorkerPool(name string, workers, queue int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		name:   name,
		tasks:  make(chan Task, queue),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// TrySubmit queues task without blocking.
// Returns domain.ErrQueueFull when every worker is busy and the queue is full.
func (p *WorkerPool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("%s pool: %w", p.name, domain.ErrClosed)
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return fmt.Errorf("%s pool: %w", p.name, domain.ErrQueueFull)
	}
}

// Submit queues task, waiting for queue space until ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("%s pool: %w", p.name, domain.ErrClosed)
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for queued tasks to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// Stop cancels running tasks, then closes the pool.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.Close()
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *WorkerPool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s pool: task panicked: %v", p.name, r)
		}
	}()
	task(p.ctx)
}
