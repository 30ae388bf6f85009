package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/codewandler/ctrlloop-go/adapters/nats"
	promadapter "github.com/codewandler/ctrlloop-go/adapters/prometheus"
	"github.com/codewandler/ctrlloop-go/core/coord"
	"github.com/codewandler/ctrlloop-go/internal/config"
)

// flagKeys maps CLI flags to their config keys.
var flagKeys = map[string]string{
	"position":     "plant.position",
	"velocity":     "plant.velocity",
	"plant-tick":   "plant.tick",
	"dt":           "plant.dt",
	"state-key":    "plant.state_key",
	"setpoint":     "target.setpoint",
	"max-velocity": "target.max_velocity",
	"gain":         "target.gain",
	"deadband":     "target.deadband",
	"target-tick":  "target.tick",
	"send-timeout": "target.send_timeout",
	"mailbox-size": "mailbox_size",
	"discipline":   "discipline",
	"nats-url":     "nats.url",
	"nats-prefix":  "nats.prefix",
	"kv-bucket":    "nats.kv_bucket",
	"metrics-addr": "metrics_addr",
	"log-level":    "log_level",
	"log-interval": "log_interval",
	"duration":     "duration",
}

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars("CTRLLOOP_" + name)
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "ctrlloop",
		Usage: "run a plant and its closed-loop controller until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", Sources: env("CONFIG")},

			&cli.FloatFlag{Name: "position", Usage: "initial plant position", Sources: env("POSITION")},
			&cli.FloatFlag{Name: "velocity", Usage: "initial plant velocity", Sources: env("VELOCITY")},
			&cli.DurationFlag{Name: "plant-tick", Usage: "plant loop period", Sources: env("PLANT_TICK")},
			&cli.DurationFlag{Name: "dt", Usage: "nominal integration step (default: plant tick)", Sources: env("DT")},
			&cli.StringFlag{Name: "state-key", Usage: "key of the persisted plant state", Sources: env("STATE_KEY")},

			&cli.FloatFlag{Name: "setpoint", Usage: "target position", Sources: env("SETPOINT")},
			&cli.FloatFlag{Name: "max-velocity", Usage: "velocity command limit", Sources: env("MAX_VELOCITY")},
			&cli.FloatFlag{Name: "gain", Usage: "proportional gain", Sources: env("GAIN")},
			&cli.FloatFlag{Name: "deadband", Usage: "commands below this magnitude are zeroed", Sources: env("DEADBAND")},
			&cli.DurationFlag{Name: "target-tick", Usage: "controller period", Sources: env("TARGET_TICK")},
			&cli.DurationFlag{Name: "send-timeout", Usage: "bound on blocking sends to the plant", Sources: env("SEND_TIMEOUT")},

			&cli.IntFlag{Name: "mailbox-size", Usage: "mailbox capacity", Sources: env("MAILBOX_SIZE")},
			&cli.StringFlag{Name: "discipline", Usage: "task discipline: join or spawn", Sources: env("DISCIPLINE")},

			&cli.StringFlag{Name: "nats-url", Usage: "enable NATS bridges", Sources: env("NATS_URL")},
			&cli.StringFlag{Name: "nats-prefix", Usage: "NATS subject prefix", Sources: env("NATS_PREFIX")},
			&cli.StringFlag{Name: "kv-bucket", Usage: "JetStream KV bucket for plant state (requires --nats-url)", Sources: env("KV_BUCKET")},

			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address", Sources: env("METRICS_ADDR")},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Sources: env("LOG_LEVEL")},
			&cli.DurationFlag{Name: "log-interval", Usage: "position log period (0 disables)", Sources: env("LOG_INTERVAL")},
			&cli.DurationFlag{Name: "duration", Usage: "stop after this long (0 runs until interrupted)", Sources: env("DURATION")},
		},
		Action: run,
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	overrides := make(map[string]any)
	for name, key := range flagKeys {
		if cmd.IsSet(name) {
			overrides[key] = cmd.Value(name)
		}
	}
	return config.Load(cmd.String("config"), overrides)
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = log

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, log, &opts)
		if err != nil {
			return err
		}
		defer stop()
	}

	if cfg.NATS.URL != "" {
		closeNATS, err := wireNATS(ctx, cfg, log, &opts)
		if err != nil {
			return err
		}
		defer closeNATS()
	} else if cfg.NATS.KVBucket != "" {
		return errors.New("--kv-bucket requires --nats-url")
	}

	if cfg.LogInterval > 0 {
		opts.Bridges = append(opts.Bridges, &positionLogger{log: log, interval: cfg.LogInterval})
	}

	c, err := coord.New(opts)
	if err != nil {
		return err
	}

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	return c.Run(ctx)
}

func serveMetrics(addr string, log *slog.Logger, opts *coord.Options) (stop func(), err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := promadapter.NewAllMetrics(reg)
	opts.Plant.Metrics = m.Plant
	opts.Target.Metrics = m.Target
	opts.GroupMetrics = m.Group

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func wireNATS(ctx context.Context, cfg config.Config, log *slog.Logger, opts *coord.Options) (closeAll func(), err error) {
	connect := nats.ReuseConnection(nats.ConnectURL(cfg.NATS.URL))

	var closers []func() error
	closeAll = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	defer func() {
		if err != nil {
			closeAll()
		}
	}()

	pub, err := nats.NewPositionPublisher(nats.PositionPublisherConfig{
		Connect:       connect,
		Log:           log,
		SubjectPrefix: cfg.NATS.Prefix,
	})
	if err != nil {
		return nil, err
	}
	closers = append(closers, pub.Close)

	cmds, err := nats.NewCommandListener(nats.CommandListenerConfig{
		Connect:       connect,
		Log:           log,
		SubjectPrefix: cfg.NATS.Prefix,
	})
	if err != nil {
		return nil, err
	}
	closers = append(closers, cmds.Close)
	opts.Bridges = append(opts.Bridges, pub, cmds)

	if cfg.NATS.KVBucket != "" {
		store, err := nats.NewKvStore(ctx, nats.KvConfig{Connect: connect, Bucket: cfg.NATS.KVBucket})
		if err != nil {
			return nil, fmt.Errorf("open plant state store: %w", err)
		}
		closers = append(closers, store.Close)
		opts.Plant.Store = store
	}

	log.Info("nats bridges enabled",
		slog.String("url", cfg.NATS.URL),
		slog.String("position", pub.Subject()),
		slog.String("commands", cmds.Subject()),
	)
	return closeAll, nil
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ctrlloop:", err)
		os.Exit(1)
	}
}
