package group

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Pool runs spawned tasks as independent goroutines and joins them in Wait.
// Every task owns what it captures: a spawned task may outlive the scope
// that spawned it until Wait is called.
type Pool struct {
	ctx      context.Context
	opts     Options
	sem      chan struct{}
	inflight atomic.Int32

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

func NewPool(ctx context.Context, opts Options) *Pool {
	opts = opts.withDefaults()
	var sem chan struct{}
	if opts.MaxConcurrent > 0 {
		sem = make(chan struct{}, opts.MaxConcurrent)
	}
	return &Pool{ctx: ctx, opts: opts, sem: sem}
}

// Spawn starts t. With a concurrency limit, t waits for a free slot; a task
// still waiting when the pool's context is done is skipped and reports the
// context error.
func (p *Pool) Spawn(t Task) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.sem != nil {
			select {
			case <-p.ctx.Done():
				p.fail(context.Cause(p.ctx))
				return
			case p.sem <- struct{}{}:
			}
			defer func() { <-p.sem }()
		}

		p.opts.Metrics.TasksInflight(int(p.inflight.Add(1)))
		defer func() { p.opts.Metrics.TasksInflight(int(p.inflight.Add(-1))) }()

		if err := runTask(p.ctx, p.opts, t); err != nil {
			p.fail(err)
		}
	}()
}

// Inflight returns the number of tasks currently running.
func (p *Pool) Inflight() int { return int(p.inflight.Load()) }

// Wait blocks until every spawned task has finished and returns their
// joined errors.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}
