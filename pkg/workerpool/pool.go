// Package workerpool provides a bounded, shared goroutine pool with join-all batches.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"invites.fest2.fun/configs/configslog"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Run after Shutdown started.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Pool bounds concurrency across every batch submitted to it.
type Pool struct {
	name   string
	size   int
	sem    *semaphore.Weighted
	active atomic.Int64

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// New returns a pool running at most size tasks at once.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Size() int    { return p.size }

// Active reports how many tasks are running right now.
func (p *Pool) Active() int64 { return p.active.Load() }

// Run executes task(i) for every i in [0, n) and returns once all of them finished.
// One task failing or panicking does not stop the others; tasks report their own
// outcome through the closure. Cancelling ctx does not abort queued or running
// tasks: a started batch always runs to completion.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int)) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.inflight.Add(n)
	p.mu.RUnlock()

	taskCtx := context.WithoutCancel(ctx)
	var batch sync.WaitGroup
	batch.Add(n)
	for i := 0; i < n; i++ {
		// Acquire cannot fail on a context that is never cancelled.
		_ = p.sem.Acquire(taskCtx, 1)
		p.active.Add(1)
		go func(i int) {
			defer func() {
				p.active.Add(-1)
				p.sem.Release(1)
				batch.Done()
				p.inflight.Done()
			}()
			defer func() {
				if r := recover(); r != nil {
					configslog.Log.Error("Worker task panicked", zap.String("pool", p.name), zap.Int("task", i), zap.Any("panic", r))
				}
			}()
			task(taskCtx, i)
		}(i)
	}
	batch.Wait()
	return nil
}

// Shutdown rejects new batches and waits for running ones, or until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
