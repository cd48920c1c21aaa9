// Package worker runs jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to the Pool.
type Job func(ctx context.Context) error

// Pool runs jobs using a fixed number of goroutines. Close blocks until every
// accepted job has finished, so it doubles as the completion barrier for a
// batch of work.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	workers int
	closeMu sync.Mutex
	closed  bool

	// OnError, if set, is called with every error a job returns. It may be
	// called from several workers at once.
	OnError func(error)
}

// NewPool creates a new worker pool with the specified number of workers
// and job queue capacity.
func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &Pool{
		jobs:    make(chan Job, queue),
		workers: workers,
	}
}

// Workers returns the number of goroutines the pool runs.
func (p *Pool) Workers() int { return p.workers }

// Start begins the worker goroutines and listens for jobs until ctx is done or Close is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					if err := job(ctx); err != nil && p.OnError != nil {
						p.OnError(err)
					}
				}
			}
		}()
	}
}

// Submit enqueues a job for processing. Returns an error if the pool is closed.
func (p *Pool) Submit(job Job) error {
	return p.SubmitCtx(context.Background(), job)
}

// SubmitCtx enqueues a job but returns ctx.Err() if ctx is canceled while
// the queue is full.
func (p *Pool) SubmitCtx(ctx context.Context, job Job) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs and waits for workers to finish.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.closeMu.Unlock()
	p.wg.Wait()
}

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError provides a simple typed error for pool operations.
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }
