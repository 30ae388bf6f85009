package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/ctrlloop-go/core/group"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctrlloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	opts, err := cfg.Options()
	require.NoError(t, err)
	require.Equal(t, group.JoinDiscipline, opts.Discipline)
	require.NoError(t, opts.Target.Params.Validate())
}

func TestLoad_file_and_overrides(t *testing.T) {
	path := writeFile(t, `
plant:
  tick: 50ms
  position: -2
target:
  setpoint: 3.5
  tick: 1s
discipline: spawn
nats:
  url: nats://localhost:4222
`)

	cfg, err := Load(path, map[string]any{
		"target.setpoint": 7.0,
		"log_level":       "debug",
	})
	require.NoError(t, err)

	require.Equal(t, 50*time.Millisecond, cfg.Plant.Tick)
	require.Equal(t, -2.0, cfg.Plant.Position)
	require.Equal(t, 7.0, cfg.Target.Setpoint)
	require.Equal(t, time.Second, cfg.Target.Tick)
	require.Equal(t, 1.0, cfg.Target.MaxVelocity, "unset keys keep their defaults")
	require.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	require.Equal(t, "ctrlloop", cfg.NATS.Prefix)

	opts, err := cfg.Options()
	require.NoError(t, err)
	require.Equal(t, group.SpawnDiscipline, opts.Discipline)
	require.Equal(t, 7.0, opts.Target.Setpoint)

	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)

	_, err = Load(writeFile(t, "plant: ["), nil)
	require.Error(t, err)

	cfg := Default()
	cfg.Discipline = "fork"
	_, err = cfg.Options()
	require.Error(t, err)

	cfg.LogLevel = "loud"
	_, err = cfg.SlogLevel()
	require.Error(t, err)
}
