package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/core/plant"
)

// positionLogger subscribes to the plant and logs the latest position on
// a fixed interval.
type positionLogger struct {
	log      *slog.Logger
	interval time.Duration
}

func (p *positionLogger) Name() string { return "position-log" }

func (p *positionLogger) Run(ctx context.Context, tx *mailbox.Sender[plant.In]) error {
	rx := mailbox.New[float64](1)
	defer rx.Close()
	if err := tx.Send(ctx, plant.RegisterSubscriber{Subscriber: rx.Sender()}); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("register position logger: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		last float64
		seen bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tx.Done():
			return nil
		case last = <-rx.C():
			seen = true
		case <-ticker.C:
			if seen {
				p.log.Info("plant position", slog.Float64("position", last))
			}
		}
	}
}
