package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/codewandler/ctrlloop-go/core/mailbox"
)

var (
	ErrAlreadyRunning = errors.New("actor already running")
	ErrPanicked       = errors.New("actor panicked")
)

type (
	OnPanic func(recovered any, stack []byte)

	// StatefulActor is implemented by every control-loop participant.
	StatefulActor[M any] interface {
		// Receive applies all currently queued messages, in order, and
		// returns as soon as the mailbox is empty. It never blocks.
		Receive(ctx context.Context, rx *mailbox.Mailbox[M])
		// Run loops until ctx is cancelled or a fatal error occurs.
		Run(ctx context.Context, rx *mailbox.Mailbox[M]) error
	}
)

type Options struct {
	// MailboxSize is the capacity of the actor's mailbox (default: mailbox.DefaultCapacity).
	MailboxSize int
	Logger      *slog.Logger
	OnPanic     OnPanic
}

// Wrapper owns an actor's state and the receiving side of its mailbox.
type Wrapper[M any, A StatefulActor[M]] struct {
	log     *slog.Logger
	state   A
	rx      *mailbox.Mailbox[M]
	onPanic OnPanic

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// New creates the wrapper and its mailbox and returns the first sender.
func New[M any, A StatefulActor[M]](state A, opt Options) (*Wrapper[M, A], *mailbox.Sender[M]) {
	if opt.MailboxSize <= 0 {
		opt.MailboxSize = mailbox.DefaultCapacity
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.OnPanic == nil {
		log := opt.Logger
		opt.OnPanic = func(recovered any, stack []byte) {
			log.Error("actor panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)))
		}
	}

	w := &Wrapper[M, A]{
		log:     opt.Logger,
		state:   state,
		rx:      mailbox.New[M](opt.MailboxSize),
		onPanic: opt.OnPanic,
		done:    make(chan struct{}),
	}
	return w, w.rx.Sender()
}

// Sender returns another producer handle. It may be called before or after Run.
func (w *Wrapper[M, A]) Sender() *mailbox.Sender[M] { return w.rx.Sender() }

// State returns the owned state. Mutating it from outside the actor's loop
// breaks the ownership contract.
func (w *Wrapper[M, A]) State() A { return w.state }

// Pending returns the number of queued messages.
func (w *Wrapper[M, A]) Pending() int { return w.rx.Len() }

// ReceivePending drains all queued messages into the state without blocking.
// It is meant for setting up the state before Run and returns
// ErrAlreadyRunning while the loop owns the state.
func (w *Wrapper[M, A]) ReceivePending(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running && !w.finished() {
		return ErrAlreadyRunning
	}
	w.state.Receive(ctx, w.rx)
	return nil
}

func (w *Wrapper[M, A]) finished() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Done is closed when Run returns.
func (w *Wrapper[M, A]) Done() <-chan struct{} { return w.done }

// Run drives the state's loop and returns once it exits. The mailbox is
// closed on return. Run may only be called once.
func (w *Wrapper[M, A]) Run(ctx context.Context) (err error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.done)
	defer w.rx.Close()
	defer func() {
		if r := recover(); r != nil {
			w.onPanic(r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()

	return w.state.Run(ctx, w.rx)
}
