package coord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/ctrlloop-go/core/actor"
	"github.com/codewandler/ctrlloop-go/core/cancel"
	"github.com/codewandler/ctrlloop-go/core/group"
	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/core/plant"
	"github.com/codewandler/ctrlloop-go/core/target"
)

// Bridge is an additional participant of the run, e.g. a transport that
// mirrors positions or forwards remote commands. Run must return once ctx is
// done. A non-nil error cancels the whole run.
type Bridge interface {
	Name() string
	Run(ctx context.Context, plant *mailbox.Sender[plant.In]) error
}

type Options struct {
	// ID identifies the run in logs. Generated if empty.
	ID string

	Plant  plant.Options
	Target target.Options

	// MailboxSize is the capacity of both the plant and the controller mailbox.
	MailboxSize int
	Discipline  group.Discipline

	// Token, when set, is used as the shared cancellation token so the host
	// can trigger shutdown. Otherwise one is created.
	Token *cancel.Token

	// Signals that trigger shutdown. Defaults to SIGINT and SIGTERM.
	Signals        []os.Signal
	DisableSignals bool

	Bridges []Bridge

	Logger       *slog.Logger
	GroupMetrics group.Metrics
}

type Coordinator struct {
	id   string
	log  *slog.Logger
	opts Options
	tok  *cancel.Token

	plant   *plant.Plant
	plantW  *actor.Wrapper[plant.In, *plant.Plant]
	plantTx *mailbox.Sender[plant.In]

	target  *target.Target
	targetW *actor.Wrapper[float64, *target.Target]

	startOnce sync.Once
	done      chan struct{}
}

// New validates opts and builds both loops. Nothing runs until Run.
func New(opts Options) (*Coordinator, error) {
	if err := opts.Target.Params.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(opts.Plant.Position) || math.IsInf(opts.Plant.Position, 0) ||
		math.IsNaN(opts.Plant.Velocity) || math.IsInf(opts.Plant.Velocity, 0) {
		return nil, fmt.Errorf("%w: plant position and velocity must be finite", target.ErrInvalidOptions)
	}
	if opts.Discipline != group.JoinDiscipline && opts.Discipline != group.SpawnDiscipline {
		return nil, fmt.Errorf("%w: unknown discipline %s", target.ErrInvalidOptions, opts.Discipline)
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = mailbox.DefaultCapacity
	}
	if opts.ID == "" {
		opts.ID = gonanoid.Must(8)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Token == nil {
		opts.Token = cancel.New(context.Background())
	}
	if len(opts.Signals) == 0 {
		opts.Signals = defaultSignals
	}

	log := opts.Logger.With(slog.String("run", opts.ID))
	c := &Coordinator{
		id:   opts.ID,
		log:  log,
		opts: opts,
		tok:  opts.Token,
		done: make(chan struct{}),
	}

	po := opts.Plant
	if po.Logger == nil {
		po.Logger = log
	}
	c.plant = plant.New(po)
	c.plantW, c.plantTx = actor.New[plant.In](c.plant, actor.Options{MailboxSize: opts.MailboxSize, Logger: log})

	to := opts.Target
	if to.Logger == nil {
		to.Logger = log
	}
	hostFatal := to.OnFatal
	to.OnFatal = func(cause error) {
		if hostFatal != nil {
			hostFatal(cause)
		}
		c.tok.Cancel(cause)
	}
	c.target = target.New(to, c.plantTx.Clone())
	c.targetW, _ = actor.New[float64](c.target, actor.Options{MailboxSize: opts.MailboxSize, Logger: log})

	return c, nil
}

func (c *Coordinator) ID() string { return c.id }

// Token returns the shared cancellation token.
func (c *Coordinator) Token() *cancel.Token { return c.tok }

// Stop triggers a graceful shutdown. It does not wait; see Done.
func (c *Coordinator) Stop() { c.tok.Cancel(nil) }

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// PlantSender returns a new producer handle to the plant's mailbox.
func (c *Coordinator) PlantSender() *mailbox.Sender[plant.In] { return c.plantTx.Clone() }

// Plant returns the latest plant snapshot.
func (c *Coordinator) Plant() plant.State { return c.plant.Snapshot() }

// Target returns what the controller last observed and commanded.
func (c *Coordinator) Target() target.Status { return c.target.Status() }

// Subscribe registers a new position subscriber with the plant. Closing the
// returned mailbox unsubscribes it on the plant's next tick.
func (c *Coordinator) Subscribe(ctx context.Context, buffer int) (*mailbox.Mailbox[float64], error) {
	mb := mailbox.New[float64](buffer)
	if err := c.plantTx.Send(ctx, plant.RegisterSubscriber{Subscriber: mb.Sender()}); err != nil {
		mb.Close()
		return nil, err
	}
	return mb, nil
}

// Run starts all participants and blocks until every one of them has
// finished. Cancelling ctx triggers the shared token. It returns nil after a
// normal shutdown and the joined task errors otherwise.
func (c *Coordinator) Run(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() { started = true })
	if !started {
		return ErrAlreadyStarted
	}
	defer close(c.done)

	stopCtx := context.AfterFunc(ctx, func() { c.tok.Cancel(context.Cause(ctx)) })
	defer stopCtx()

	// The plant outlives the controller so that the final stop command is
	// applied before the plant exits.
	plantStop := cancel.New(context.WithoutCancel(c.tok))

	tasks := []group.Task{
		{
			Name: "plant",
			Run: func(context.Context) error {
				err := c.plantW.Run(plantStop)
				if err != nil {
					c.tok.Cancel(err)
				}
				return err
			},
		},
		{
			Name: "target",
			Run: func(context.Context) error {
				defer plantStop.Cancel(nil)
				err := c.targetW.Run(c.tok)
				if err != nil {
					c.tok.Cancel(err)
				}
				return err
			},
		},
	}
	if !c.opts.DisableSignals {
		tasks = append(tasks, signalListener(c.tok, c.log, c.opts.Signals))
	}
	for _, b := range c.opts.Bridges {
		tasks = append(tasks, c.bridgeTask(b))
	}

	c.log.Info("control loop started",
		slog.String("discipline", c.opts.Discipline.String()),
		slog.Float64("setpoint", c.opts.Target.Setpoint),
		slog.Int("bridges", len(c.opts.Bridges)),
	)

	err := group.Run(c.tok, c.opts.Discipline, group.Options{
		Logger:  c.log,
		Metrics: c.opts.GroupMetrics,
	}, tasks...)

	st := c.plant.Snapshot()
	if err != nil {
		c.log.Error("control loop failed", slog.Any("error", err), slog.Float64("position", st.Position))
		return err
	}
	c.log.Info("control loop stopped",
		slog.Any("cause", c.tok.Cause()),
		slog.Float64("position", st.Position),
		slog.Float64("velocity", st.Velocity),
	)
	return nil
}

func (c *Coordinator) bridgeTask(b Bridge) group.Task {
	return group.Task{
		Name: "bridge/" + b.Name(),
		Run: func(context.Context) error {
			err := b.Run(c.tok, c.plantTx.Clone())
			if err == nil || (c.tok.Cancelled() && errors.Is(err, context.Canceled)) {
				return nil
			}
			c.tok.Cancel(err)
			return err
		},
	}
}
