// Package cancel provides a shared, monotonic cancellation signal.
//
// A [Token] is shared by every participant of a coordinated run. Any holder
// may poll it, wait on it, or trigger it. Once triggered it stays triggered.
// Token implements [context.Context], so it can be handed to any blocking call.
package cancel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type Token struct {
	parent context.Context

	cancelled atomic.Bool
	done      chan struct{}

	mu    sync.Mutex
	cause error
	err   error

	stopParent func() bool
}

// New creates a token that is also cancelled when parent is done. A nil
// parent means context.Background().
func New(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	t := &Token{
		parent: parent,
		done:   make(chan struct{}),
	}
	t.mu.Lock()
	t.stopParent = context.AfterFunc(parent, func() {
		t.cancel(context.Cause(parent), parent.Err())
	})
	t.mu.Unlock()
	return t
}

// Cancel triggers the token. Only the first call has an effect; its cause is
// kept. A nil cause is recorded as context.Canceled.
func (t *Token) Cancel(cause error) {
	if cause == nil {
		cause = context.Canceled
	}
	err := context.Canceled
	if errors.Is(cause, context.DeadlineExceeded) {
		err = context.DeadlineExceeded
	}
	t.cancel(cause, err)
}

func (t *Token) cancel(cause, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled.Load() {
		return
	}
	t.cause = cause
	t.err = err
	t.cancelled.Store(true)
	close(t.done)
	if t.stopParent != nil {
		t.stopParent()
	}
}

// Cancelled polls the token without blocking.
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Cause returns the cause given to the first Cancel, or nil.
func (t *Token) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Done is closed once the token is cancelled.
func (t *Token) Done() <-chan struct{} { return t.done }

// Err follows the context.Context contract: nil before cancellation, then
// context.DeadlineExceeded if a deadline ended the token and
// context.Canceled otherwise. Use Cause for the reason.
func (t *Token) Err() error {
	if !t.cancelled.Load() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Token) Deadline() (deadline time.Time, ok bool) { return t.parent.Deadline() }
func (t *Token) Value(key any) any                       { return t.parent.Value(key) }

var _ context.Context = (*Token)(nil)
