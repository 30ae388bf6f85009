package plant

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/codewandler/ctrlloop-go/core/actor"
	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/ports/kv"
)

const (
	DefaultTick     = 100 * time.Millisecond
	DefaultStateKey = "plant"

	persistTimeout = 5 * time.Second
)

type Options struct {
	Position float64
	Velocity float64

	// Tick is the wall-clock period of the loop.
	Tick time.Duration
	// DT is the nominal integration step. It defaults to Tick and is applied
	// on every tick regardless of timer jitter.
	DT time.Duration

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics Metrics

	// Store, when set, is used to restore the plant on start and to save it
	// when the loop exits.
	Store    kv.Store
	StateKey string
}

// State is a point-in-time copy of the plant.
type State struct {
	Position    float64 `json:"position"`
	Velocity    float64 `json:"velocity"`
	Subscribers int     `json:"-"`
	Ticks       uint64  `json:"-"`
}

// Plant is the stateful process driven by the controller. All of its fields
// are owned by the goroutine running Run.
type Plant struct {
	log     *slog.Logger
	clock   clockwork.Clock
	metrics Metrics
	tick    time.Duration
	dt      float64

	store    kv.Store
	stateKey string

	position    float64
	velocity    float64
	ticks       uint64
	subscribers []*mailbox.Sender[float64]

	snap atomic.Pointer[State]
}

func New(opts Options) *Plant {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.DT <= 0 {
		opts.DT = opts.Tick
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	if opts.StateKey == "" {
		opts.StateKey = DefaultStateKey
	}

	p := &Plant{
		log:      opts.Logger.With(slog.String("component", "plant")),
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		tick:     opts.Tick,
		dt:       opts.DT.Seconds(),
		store:    opts.Store,
		stateKey: opts.StateKey,
		position: opts.Position,
		velocity: opts.Velocity,
	}
	p.publish()
	return p
}

// Snapshot returns the state as of the end of the last tick. Safe for
// concurrent use.
func (p *Plant) Snapshot() State { return *p.snap.Load() }

// Receive applies all queued commands in FIFO order without blocking.
func (p *Plant) Receive(ctx context.Context, rx *mailbox.Mailbox[In]) {
	for {
		msg, ok := rx.TryRecv()
		if !ok {
			return
		}
		p.apply(msg)
	}
}

// Run is the plant's control loop. It returns nil once ctx is cancelled.
func (p *Plant) Run(ctx context.Context, rx *mailbox.Mailbox[In]) error {
	p.restore(ctx)

	ticker := p.clock.NewTicker(p.tick)
	defer ticker.Stop()

	p.log.Debug("plant started",
		slog.Duration("tick", p.tick),
		slog.Float64("position", p.position),
		slog.Float64("velocity", p.velocity),
	)

	for {
		p.step()
		p.Receive(ctx, rx)
		p.publish()

		select {
		case <-ctx.Done():
			// apply what is already queued, but do not broadcast
			p.Receive(ctx, rx)
			p.subscribers = nil
			p.publish()
			p.persist(ctx)
			p.log.Debug("plant stopped",
				slog.Float64("position", p.position),
				slog.Float64("velocity", p.velocity),
			)
			return nil
		case <-ticker.Chan():
		}
	}
}

// step integrates the position and broadcasts it.
func (p *Plant) step() {
	defer p.metrics.TickDuration().ObserveDuration()

	p.position += p.velocity * p.dt
	p.ticks++
	p.broadcast()
}

// broadcast delivers the position to every live subscriber. Subscribers
// whose mailbox is closed are removed before any send is attempted.
func (p *Plant) broadcast() {
	live := p.subscribers[:0]
	for _, s := range p.subscribers {
		if s.Closed() {
			p.metrics.SubscriberPruned()
			continue
		}
		if err := s.TrySend(p.position); err != nil {
			if errors.Is(err, mailbox.ErrMailboxClosed) {
				p.metrics.SubscriberPruned()
				continue
			}
			p.metrics.BroadcastDropped()
			p.log.Debug("position update dropped", slog.Any("error", err))
		}
		live = append(live, s)
	}
	clear(p.subscribers[len(live):])
	p.subscribers = live
}

func (p *Plant) apply(msg In) {
	switch m := msg.(type) {
	case SetVelocity:
		if math.IsNaN(m.Velocity) || math.IsInf(m.Velocity, 0) {
			p.metrics.CommandRejected(m.Kind())
			p.log.Warn("rejected velocity command", slog.Float64("velocity", m.Velocity))
			return
		}
		p.velocity = m.Velocity
	case RegisterSubscriber:
		if m.Subscriber == nil || m.Subscriber.Closed() {
			p.metrics.CommandRejected(m.Kind())
			return
		}
		p.subscribers = append(p.subscribers, m.Subscriber)
	default:
		p.log.Warn("unknown plant command", slog.Any("msg", msg))
		return
	}
	p.metrics.CommandApplied(msg.Kind())
}

func (p *Plant) publish() {
	p.snap.Store(&State{
		Position:    p.position,
		Velocity:    p.velocity,
		Subscribers: len(p.subscribers),
		Ticks:       p.ticks,
	})
	p.metrics.Position(p.position)
	p.metrics.Velocity(p.velocity)
	p.metrics.Subscribers(len(p.subscribers))
}

func (p *Plant) restore(ctx context.Context) {
	if p.store == nil {
		return
	}
	st, err := kv.Get[State](ctx, p.store, p.stateKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			p.log.Warn("failed to restore plant state", slog.String("key", p.stateKey), slog.Any("error", err))
		}
		return
	}
	p.position, p.velocity = st.Position, st.Velocity
	p.publish()
	p.log.Info("plant state restored", slog.String("key", p.stateKey), slog.Float64("position", st.Position))
}

func (p *Plant) persist(ctx context.Context) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	st := State{Position: p.position, Velocity: p.velocity}
	if err := kv.Put(ctx, p.store, p.stateKey, st, kv.PutOptions{}); err != nil {
		p.log.Error("failed to persist plant state", slog.String("key", p.stateKey), slog.Any("error", err))
	}
}

var _ actor.StatefulActor[In] = (*Plant)(nil)
