package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrTaskPanicked = errors.New("task panicked")

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Discipline selects how Run executes its tasks.
type Discipline uint8

const (
	// JoinDiscipline runs the tasks as one fixed, statically nested set.
	JoinDiscipline Discipline = iota
	// SpawnDiscipline spawns each task onto a Pool and waits for the pool.
	SpawnDiscipline
)

func (d Discipline) String() string {
	switch d {
	case JoinDiscipline:
		return "join"
	case SpawnDiscipline:
		return "spawn"
	default:
		return fmt.Sprintf("discipline(%d)", uint8(d))
	}
}

// ParseDiscipline accepts "join" and "spawn".
func ParseDiscipline(s string) (Discipline, error) {
	switch s {
	case "", "join":
		return JoinDiscipline, nil
	case "spawn":
		return SpawnDiscipline, nil
	default:
		return 0, fmt.Errorf("unknown discipline %q", s)
	}
}

// Run executes tasks with the given discipline and returns once all of them
// have finished.
func Run(ctx context.Context, d Discipline, opts Options, tasks ...Task) error {
	switch d {
	case JoinDiscipline:
		return Join(ctx, opts, tasks...)
	case SpawnDiscipline:
		p := NewPool(ctx, opts)
		for _, t := range tasks {
			p.Spawn(t)
		}
		return p.Wait()
	default:
		return fmt.Errorf("unknown discipline %s", d)
	}
}

// Join runs a fixed set of tasks concurrently and waits for all of them.
func Join(ctx context.Context, opts Options, tasks ...Task) error {
	opts = opts.withDefaults()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, t := range tasks {
		g.Go(func() error {
			if err := runTask(ctx, opts, t); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// runTask executes one task with panic containment and metrics.
func runTask(ctx context.Context, opts Options, t Task) (err error) {
	log := opts.Logger.With(slog.String("task", t.Name))

	defer opts.Metrics.TaskDuration(t.Name).ObserveDuration()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", slog.Any("recovered", r), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %w: %v", t.Name, ErrTaskPanicked, r)
		}
		opts.Metrics.TaskCompleted(t.Name, err == nil)
	}()

	log.Debug("task started")
	if err = t.Run(ctx); err != nil {
		log.Debug("task failed", slog.Any("error", err))
		return fmt.Errorf("%s: %w", t.Name, err)
	}
	log.Debug("task finished")
	return nil
}
