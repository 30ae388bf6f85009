package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/codewandler/ctrlloop-go/core/actor"
	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/core/plant"
)

const (
	DefaultTick        = 200 * time.Millisecond
	DefaultSendTimeout = time.Second
)

type Options struct {
	Params

	// Tick is the period of the correction timer.
	Tick time.Duration
	// SendTimeout bounds the blocking sends (registration and final stop).
	SendTimeout time.Duration

	// OnFatal is called with the cause when the loop hits a fatal condition,
	// typically to cancel the whole coordinated group.
	OnFatal func(cause error)

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics Metrics
}

// Status is what the controller last observed and commanded.
type Status struct {
	Position float64
	Observed bool
	Command  float64
}

// Target is the closed-loop controller. Its mailbox receives plant positions.
type Target struct {
	Params

	log         *slog.Logger
	clock       clockwork.Clock
	metrics     Metrics
	tick        time.Duration
	sendTimeout time.Duration
	onFatal     func(error)

	plant *mailbox.Sender[plant.In]

	position float64
	observed bool
	command  float64

	status atomic.Pointer[Status]
}

// New creates a controller that drives the plant behind tx.
func New(opts Options, tx *mailbox.Sender[plant.In]) *Target {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
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
	if opts.OnFatal == nil {
		opts.OnFatal = func(error) {}
	}

	t := &Target{
		Params:      opts.Params,
		log:         opts.Logger.With(slog.String("component", "target")),
		clock:       opts.Clock,
		metrics:     opts.Metrics,
		tick:        opts.Tick,
		sendTimeout: opts.SendTimeout,
		onFatal:     opts.OnFatal,
		plant:       tx,
	}
	t.publish()
	return t
}

// Status is safe for concurrent use.
func (t *Target) Status() Status { return *t.status.Load() }

// Receive drains queued position updates, keeping the latest.
func (t *Target) Receive(_ context.Context, rx *mailbox.Mailbox[float64]) {
	for {
		pos, ok := rx.TryRecv()
		if !ok {
			return
		}
		t.observe(pos)
	}
}

// Run registers with the plant and runs the correction loop until ctx is
// cancelled. On cancellation it commands the plant to stop.
func (t *Target) Run(ctx context.Context, rx *mailbox.Mailbox[float64]) error {
	if err := t.register(ctx, rx.Sender()); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		err = fmt.Errorf("%w: %w", ErrRegister, err)
		t.onFatal(err)
		return err
	}

	ticker := t.clock.NewTicker(t.tick)
	defer ticker.Stop()

	t.log.Debug("target started", slog.Duration("tick", t.tick), slog.Float64("setpoint", t.Setpoint))

	for {
		select {
		case <-ctx.Done():
			t.stop(ctx)
			return nil

		case <-t.plant.Done():
			if ctx.Err() != nil {
				return nil
			}
			t.log.Error("plant gone, cancelling")
			t.onFatal(ErrPlantGone)
			return ErrPlantGone

		case pos := <-rx.C():
			t.observe(pos)
			t.Receive(ctx, rx)

		case <-ticker.Chan():
			if err := t.correct(); err != nil {
				t.onFatal(err)
				return err
			}
		}
	}
}

func (t *Target) register(ctx context.Context, self *mailbox.Sender[float64]) error {
	ctx, cancel := context.WithTimeout(ctx, t.sendTimeout)
	defer cancel()
	return t.plant.Send(ctx, plant.RegisterSubscriber{Subscriber: self})
}

func (t *Target) observe(pos float64) {
	t.position = pos
	t.observed = true
	t.metrics.PositionObserved()
	t.metrics.TrackingError(t.Setpoint - pos)
	t.publish()
}

// correct sends one correction. A full plant mailbox drops the command.
func (t *Target) correct() error {
	if !t.observed {
		return nil
	}
	cmd := Correction(t.Params, t.position)
	t.command = cmd
	t.publish()
	t.metrics.Command(cmd)

	err := t.plant.TrySend(plant.SetVelocity{Velocity: cmd})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mailbox.ErrMailboxFull):
		t.metrics.CommandDropped()
		t.log.Warn("plant mailbox full, correction dropped", slog.Float64("command", cmd))
		return nil
	case errors.Is(err, mailbox.ErrMailboxClosed):
		return ErrPlantGone
	default:
		return err
	}
}

// stop leaves the plant at rest. Failure is logged, not returned.
func (t *Target) stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.sendTimeout)
	defer cancel()

	t.command = 0
	t.publish()
	if err := t.plant.Send(ctx, plant.SetVelocity{Velocity: 0}); err != nil {
		t.log.Warn("failed to send final stop command", slog.Any("error", err))
		return
	}
	t.log.Debug("target stopped", slog.Float64("position", t.position))
}

func (t *Target) publish() {
	t.status.Store(&Status{Position: t.position, Observed: t.observed, Command: t.command})
}

var _ actor.StatefulActor[float64] = (*Target)(nil)
