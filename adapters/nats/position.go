package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/core/plant"
	"github.com/codewandler/ctrlloop-go/internal/codec"
)

type PositionPublisherConfig struct {
	Connect       Connector    // If nil, ConnectDefault() is used.
	Log           *slog.Logger // optional
	SubjectPrefix string       // e.g. "ctrlloop" -> ctrlloop.position
	Buffer        int          // subscriber mailbox capacity
	Codec         codec.Codec
}

// PositionPublisher subscribes to the plant and mirrors every position
// update onto NATS.
type PositionPublisher struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	subject string
	buffer  int
	codec   codec.Codec

	seq atomic.Uint64
}

func NewPositionPublisher(cfg PositionPublisherConfig) (*PositionPublisher, error) {
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

	p := &PositionPublisher{
		nc:      nc,
		closeNc: closeNc,
		subject: subject(cfg.SubjectPrefix, "position"),
		buffer:  cfg.Buffer,
		codec:   cfg.Codec,
	}
	p.log = log.With(slog.String("bridge", p.Name()), slog.String("id", gonanoid.Must(6)))
	return p, nil
}

func (p *PositionPublisher) Name() string    { return "nats-position" }
func (p *PositionPublisher) Subject() string { return p.subject }

// Published returns the number of updates published so far.
func (p *PositionPublisher) Published() uint64 { return p.seq.Load() }

// Run registers with the plant and publishes until ctx is done or the plant
// goes away.
func (p *PositionPublisher) Run(ctx context.Context, tx *mailbox.Sender[plant.In]) error {
	rx := mailbox.New[float64](p.buffer)
	defer rx.Close()

	if err := tx.Send(ctx, plant.RegisterSubscriber{Subscriber: rx.Sender()}); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("register position publisher: %w", err)
	}
	p.log.Debug("publishing positions", slog.String("subject", p.subject))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tx.Done():
			return nil
		case pos := <-rx.C():
			p.publish(pos)
		}
	}
}

func (p *PositionPublisher) publish(pos float64) {
	upd := PositionUpdate{Seq: p.seq.Add(1), Position: pos, Time: time.Now().UTC()}
	data, err := p.codec.Marshal(upd)
	if err != nil {
		p.log.Error("failed to encode position", slog.Any("error", err))
		return
	}
	msg := natsgo.NewMsg(p.subject)
	msg.Header.Set(headerContentType, p.codec.ContentType())
	msg.Data = data
	if err := p.nc.PublishMsg(msg); err != nil {
		p.log.Warn("failed to publish position", slog.Any("error", err))
	}
}

func (p *PositionPublisher) Close() error {
	if err := p.nc.Flush(); err != nil {
		p.log.Debug("flush failed", slog.Any("error", err))
	}
	p.closeNc()
	return nil
}
