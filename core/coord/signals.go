package coord

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/codewandler/ctrlloop-go/core/cancel"
	"github.com/codewandler/ctrlloop-go/core/group"
)

var defaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func signalListener(tok *cancel.Token, log *slog.Logger, sigs []os.Signal) group.Task {
	return group.Task{
		Name: "signals",
		Run: func(ctx context.Context) error {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, sigs...)
			defer signal.Stop(ch)
			listen(tok, log, ch)
			return nil
		},
	}
}

// listen cancels tok on the first signal. It returns when tok is cancelled.
func listen(tok *cancel.Token, log *slog.Logger, ch <-chan os.Signal) {
	select {
	case <-tok.Done():
	case sig := <-ch:
		log.Info("shutdown requested", slog.String("signal", sig.String()))
		tok.Cancel(ErrShutdownRequested)
	}
}
