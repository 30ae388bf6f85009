// Package config loads ctrlloop settings from defaults, an optional YAML
// file and explicit overrides, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/codewandler/ctrlloop-go/core/coord"
	"github.com/codewandler/ctrlloop-go/core/group"
	"github.com/codewandler/ctrlloop-go/core/plant"
	"github.com/codewandler/ctrlloop-go/core/target"
)

type Plant struct {
	Position float64       `koanf:"position"`
	Velocity float64       `koanf:"velocity"`
	Tick     time.Duration `koanf:"tick"`
	DT       time.Duration `koanf:"dt"`
	StateKey string        `koanf:"state_key"`
}

type Target struct {
	Setpoint    float64       `koanf:"setpoint"`
	MaxVelocity float64       `koanf:"max_velocity"`
	Gain        float64       `koanf:"gain"`
	Deadband    float64       `koanf:"deadband"`
	Tick        time.Duration `koanf:"tick"`
	SendTimeout time.Duration `koanf:"send_timeout"`
}

type NATS struct {
	URL      string `koanf:"url"`
	Prefix   string `koanf:"prefix"`
	KVBucket string `koanf:"kv_bucket"`
}

type Config struct {
	Plant       Plant         `koanf:"plant"`
	Target      Target        `koanf:"target"`
	MailboxSize int           `koanf:"mailbox_size"`
	Discipline  string        `koanf:"discipline"`
	NATS        NATS          `koanf:"nats"`
	MetricsAddr string        `koanf:"metrics_addr"`
	LogLevel    string        `koanf:"log_level"`
	LogInterval time.Duration `koanf:"log_interval"`
	// Duration stops the run after the given time. Zero runs until signalled.
	Duration time.Duration `koanf:"duration"`
}

func Default() Config {
	return Config{
		Plant: Plant{
			Tick:     plant.DefaultTick,
			StateKey: plant.DefaultStateKey,
		},
		Target: Target{
			Setpoint:    10,
			MaxVelocity: 1,
			Gain:        1,
			Deadband:    0.01,
			Tick:        target.DefaultTick,
			SendTimeout: target.DefaultSendTimeout,
		},
		MailboxSize: 10,
		Discipline:  group.JoinDiscipline.String(),
		NATS:        NATS{Prefix: "ctrlloop"},
		LogLevel:    "info",
		LogInterval: time.Second,
	}
}

// Load merges the defaults, the YAML file at path (if not empty) and the
// overrides, keyed by their dotted koanf path (e.g. "target.setpoint").
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Options translates the config into coordinator options. Logging, metrics,
// storage and bridges are wired by the caller.
func (c Config) Options() (coord.Options, error) {
	d, err := group.ParseDiscipline(c.Discipline)
	if err != nil {
		return coord.Options{}, err
	}
	return coord.Options{
		Plant: plant.Options{
			Position: c.Plant.Position,
			Velocity: c.Plant.Velocity,
			Tick:     c.Plant.Tick,
			DT:       c.Plant.DT,
			StateKey: c.Plant.StateKey,
		},
		Target: target.Options{
			Params: target.Params{
				Setpoint:    c.Target.Setpoint,
				MaxVelocity: c.Target.MaxVelocity,
				Gain:        c.Target.Gain,
				Deadband:    c.Target.Deadband,
			},
			Tick:        c.Target.Tick,
			SendTimeout: c.Target.SendTimeout,
		},
		MailboxSize: c.MailboxSize,
		Discipline:  d,
	}, nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
