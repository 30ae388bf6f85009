package mailbox

import (
	"context"
	"fmt"
	"sync"
)

// DefaultCapacity is used when New is called with a capacity <= 0.
const DefaultCapacity = 10

// Mailbox is the receiving side of a bounded FIFO queue. Only the owner
// should receive from it.
type Mailbox[M any] struct {
	queue chan M

	closeOnce sync.Once
	closed    chan struct{}
}

// Sender is a producer handle for a Mailbox. Senders are cheap and can be
// shared or cloned freely.
type Sender[M any] struct {
	mb *Mailbox[M]
}

func New[M any](capacity int) *Mailbox[M] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox[M]{
		queue:  make(chan M, capacity),
		closed: make(chan struct{}),
	}
}

// Sender returns a new producer handle.
func (m *Mailbox[M]) Sender() *Sender[M] { return &Sender[M]{mb: m} }

// C exposes the queue for use in select statements.
func (m *Mailbox[M]) C() <-chan M { return m.queue }

// TryRecv dequeues one message without blocking.
func (m *Mailbox[M]) TryRecv() (msg M, ok bool) {
	select {
	case msg = <-m.queue:
		return msg, true
	default:
		return msg, false
	}
}

// Recv blocks until a message is available, the mailbox is closed or ctx is done.
func (m *Mailbox[M]) Recv(ctx context.Context) (msg M, err error) {
	select {
	case <-ctx.Done():
		return msg, ctx.Err()
	case <-m.closed:
		return msg, ErrMailboxClosed
	case msg = <-m.queue:
		return msg, nil
	}
}

func (m *Mailbox[M]) Len() int { return len(m.queue) }
func (m *Mailbox[M]) Cap() int { return cap(m.queue) }

// Close drops the receiving end. It is idempotent. Messages still queued are
// never delivered.
func (m *Mailbox[M]) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// Done is closed once the mailbox is closed.
func (m *Mailbox[M]) Done() <-chan struct{} { return m.closed }

func (m *Mailbox[M]) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Clone returns another handle to the same mailbox.
func (s *Sender[M]) Clone() *Sender[M] { return &Sender[M]{mb: s.mb} }

// Send enqueues msg, blocking until there is room, ctx is done or the
// mailbox is closed. A nil error means msg was queued before the mailbox
// was closed.
func (s *Sender[M]) Send(ctx context.Context, msg M) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("send failed: %w", ctx.Err())
	case <-s.mb.closed:
		return ErrMailboxClosed
	case s.mb.queue <- msg:
		return s.enqueued()
	}
}

// TrySend enqueues msg if there is room right now.
func (s *Sender[M]) TrySend(msg M) error {
	select {
	case <-s.mb.closed:
		return ErrMailboxClosed
	case s.mb.queue <- msg:
		return s.enqueued()
	default:
		return ErrMailboxFull
	}
}

// enqueued reports a message that raced with Close as not delivered.
func (s *Sender[M]) enqueued() error {
	if s.mb.isClosed() {
		return ErrMailboxClosed
	}
	return nil
}

// Closed reports whether the receiving end has been dropped.
func (s *Sender[M]) Closed() bool { return s.mb.isClosed() }

// Done is closed when the receiving end is dropped.
func (s *Sender[M]) Done() <-chan struct{} { return s.mb.closed }
