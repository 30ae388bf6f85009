package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	gonanoid "github.com/matoous/go-nanoid/v2"
	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/core/plant"
	"github.com/codewandler/ctrlloop-go/internal/codec"
)

var ErrInvalidCommand = errors.New("invalid velocity command")

type CommandListenerConfig struct {
	Connect       Connector    // If nil, ConnectDefault() is used.
	Log           *slog.Logger // optional
	SubjectPrefix string       // e.g. "ctrlloop" -> ctrlloop.velocity
	Codec         codec.Codec
}

// CommandListener forwards velocity commands received on NATS to the plant.
// Commands that do not fit into the plant's mailbox are dropped.
type CommandListener struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	subject string
	codec   codec.Codec
}

func NewCommandListener(cfg CommandListenerConfig) (*CommandListener, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Default
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	l := &CommandListener{
		nc:      nc,
		closeNc: closeNc,
		subject: subject(cfg.SubjectPrefix, "velocity"),
		codec:   cfg.Codec,
	}
	l.log = log.With(slog.String("bridge", l.Name()), slog.String("id", gonanoid.Must(6)))
	return l, nil
}

func (l *CommandListener) Name() string    { return "nats-command" }
func (l *CommandListener) Subject() string { return l.subject }

func (l *CommandListener) Run(ctx context.Context, tx *mailbox.Sender[plant.In]) error {
	ch := make(chan *natsgo.Msg, 64)
	sub, err := l.nc.ChanSubscribe(l.subject, ch)
	if err != nil {
		return fmt.Errorf("nats: subscribe %s: %w", l.subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	// make sure the subscription is known to the server before commands are
	// expected to arrive
	if err := l.nc.Flush(); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	l.log.Debug("listening for commands", slog.String("subject", l.subject))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tx.Done():
			return nil
		case msg := <-ch:
			l.reply(msg, l.forward(msg, tx))
		}
	}
}

func (l *CommandListener) forward(msg *natsgo.Msg, tx *mailbox.Sender[plant.In]) error {
	var cmd VelocityCommand
	if err := l.codec.Unmarshal(msg.Data, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if math.IsNaN(cmd.Velocity) || math.IsInf(cmd.Velocity, 0) {
		return ErrInvalidCommand
	}
	err := tx.TrySend(plant.SetVelocity{Velocity: cmd.Velocity})
	if errors.Is(err, mailbox.ErrMailboxFull) {
		l.log.Warn("plant mailbox full, command dropped", slog.Float64("velocity", cmd.Velocity))
	}
	return err
}

func (l *CommandListener) reply(msg *natsgo.Msg, err error) {
	if err != nil {
		l.log.Debug("command rejected", slog.Any("error", err))
	}
	if msg.Reply == "" {
		return
	}
	r := CommandReply{Accepted: err == nil}
	if err != nil {
		r.Error = err.Error()
	}
	data, mErr := l.codec.Marshal(r)
	if mErr != nil {
		l.log.Error("failed to encode reply", slog.Any("error", mErr))
		return
	}
	if err := msg.Respond(data); err != nil {
		l.log.Warn("failed to reply", slog.Any("error", err))
	}
}

func (l *CommandListener) Close() error {
	l.closeNc()
	return nil
}
