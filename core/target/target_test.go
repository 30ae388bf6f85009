package target

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/ctrlloop-go/core/actor"
	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/core/plant"
)

var testParams = Params{Setpoint: 10, MaxVelocity: 1, Gain: 1, Deadband: 0.01}

func TestCorrection_deadband(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 10_000 {
		p := Params{
			Setpoint:    r.NormFloat64() * 100,
			MaxVelocity: r.Float64() * 10,
			Gain:        0.01 + r.Float64()*5,
			Deadband:    r.Float64(),
		}
		// inside the deadband: |setpoint - pos| * gain < deadband
		off := (r.Float64()*2 - 1) * p.Deadband / p.Gain * 0.999
		pos := p.Setpoint - off
		if math.Abs(p.Setpoint-pos)*p.Gain >= p.Deadband {
			continue
		}
		require.Equal(t, 0.0, Correction(p, pos), "params=%+v pos=%v", p, pos)
	}
}

func TestCorrection_clamp(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for range 10_000 {
		p := Params{
			Setpoint:    r.NormFloat64() * 100,
			MaxVelocity: r.Float64() * 10,
			Gain:        r.Float64() * 5,
			Deadband:    r.Float64() * 0.1,
		}
		require.NoError(t, p.Validate())
		pos := r.NormFloat64() * 1000
		cmd := Correction(p, pos)
		require.LessOrEqual(t, math.Abs(cmd), p.MaxVelocity, "params=%+v pos=%v", p, pos)
	}
	require.LessOrEqual(t, math.Abs(Correction(testParams, math.Inf(-1))), 1.0)
	require.Equal(t, 0.0, Correction(testParams, math.NaN()))
}

func TestCorrection_proportional(t *testing.T) {
	require.Equal(t, 1.0, Correction(testParams, 0))
	require.Equal(t, -1.0, Correction(testParams, 20))
	require.InDelta(t, 0.5, Correction(testParams, 9.5), 1e-9)
	require.InDelta(t, 0.25, Correction(Params{Setpoint: 1, MaxVelocity: 1, Gain: 0.5, Deadband: 0.01}, 0.5), 1e-9)
	require.Equal(t, 0.0, Correction(testParams, 9.995))
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, testParams.Validate())
	require.ErrorIs(t, Params{MaxVelocity: -1}.Validate(), ErrInvalidOptions)
	require.ErrorIs(t, Params{Deadband: -1}.Validate(), ErrInvalidOptions)
	require.ErrorIs(t, Params{Gain: math.NaN()}.Validate(), ErrInvalidOptions)
	require.ErrorIs(t, Params{Setpoint: 10, MaxVelocity: 1, Gain: -1, Deadband: 0.01}.Validate(), ErrInvalidOptions)
	require.NoError(t, Params{MaxVelocity: 1}.Validate(), "zero gain keeps the plant at rest")
}

type harness struct {
	t       *testing.T
	plantMB *mailbox.Mailbox[plant.In]
	target  *Target
	cancel  context.CancelFunc
	errs    chan error

	mu    sync.Mutex
	fatal []error
}

func newHarness(t *testing.T, plantCap int) *harness {
	h := &harness{t: t, plantMB: mailbox.New[plant.In](plantCap), errs: make(chan error, 1)}
	h.target = New(Options{
		Params:      testParams,
		Tick:        5 * time.Millisecond,
		SendTimeout: 200 * time.Millisecond,
		OnFatal: func(err error) {
			h.mu.Lock()
			h.fatal = append(h.fatal, err)
			h.mu.Unlock()
		},
	}, h.plantMB.Sender())
	return h
}

func (h *harness) start() {
	w, _ := actor.New[float64](h.target, actor.Options{})
	ctx, cancel := context.WithCancel(h.t.Context())
	h.cancel = cancel
	go func() { h.errs <- w.Run(ctx) }()
}

func (h *harness) next() plant.In {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.t.Context(), time.Second)
	defer cancel()
	msg, err := h.plantMB.Recv(ctx)
	require.NoError(h.t, err)
	return msg
}

func (h *harness) subscriber() *mailbox.Sender[float64] {
	h.t.Helper()
	msg := h.next()
	reg, ok := msg.(plant.RegisterSubscriber)
	require.True(h.t, ok, "first message must be a registration, got %T", msg)
	require.NotNil(h.t, reg.Subscriber)
	return reg.Subscriber
}

func (h *harness) waitVelocity(v float64) {
	h.t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			h.t.Fatalf("no SetVelocity(%v) received", v)
		case msg := <-h.plantMB.C():
			if sv, ok := msg.(plant.SetVelocity); ok && sv.Velocity == v {
				return
			}
		}
	}
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.errs:
		return err
	case <-time.After(2 * time.Second):
		h.t.Fatal("target did not stop")
		return nil
	}
}

func TestTarget_registers_and_corrects(t *testing.T) {
	h := newHarness(t, 10)
	h.start()

	sub := h.subscriber()

	// nothing is commanded before the first observation
	select {
	case msg := <-h.plantMB.C():
		t.Fatalf("unexpected command before first position: %v", msg)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, sub.TrySend(0))
	h.waitVelocity(1)

	require.NoError(t, sub.TrySend(9.5))
	h.waitVelocity(0.5)

	require.NoError(t, sub.TrySend(9.995))
	h.waitVelocity(0)

	require.Eventually(t, func() bool { return h.target.Status().Position == 9.995 }, time.Second, time.Millisecond)

	h.cancel()
	require.NoError(t, h.wait())
}

func TestTarget_final_stop_command(t *testing.T) {
	h := newHarness(t, 10)
	h.start()

	sub := h.subscriber()
	require.NoError(t, sub.TrySend(0))
	h.waitVelocity(1)

	h.cancel()

	var got []plant.In
	done := false
	for !done {
		select {
		case msg := <-h.plantMB.C():
			got = append(got, msg)
		case err := <-h.errs:
			require.NoError(t, err)
			done = true
		case <-time.After(2 * time.Second):
			t.Fatal("target did not stop")
		}
	}
	for {
		msg, ok := h.plantMB.TryRecv()
		if !ok {
			break
		}
		got = append(got, msg)
	}

	require.NotEmpty(t, got)
	require.Equal(t, plant.SetVelocity{Velocity: 0}, got[len(got)-1])
	require.Empty(t, h.fatal)
	require.Equal(t, 0.0, h.target.Status().Command)
}

func TestTarget_drops_corrections_when_plant_is_full(t *testing.T) {
	h := newHarness(t, 2)
	h.start()

	sub := h.subscriber()
	require.NoError(t, sub.TrySend(0))

	// nobody drains the plant mailbox: corrections pile up and are dropped
	require.Eventually(t, func() bool { return h.plantMB.Len() == 2 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	select {
	case err := <-h.errs:
		t.Fatalf("target must keep running, got %v", err)
	default:
	}

	h.cancel()
	// final stop cannot be delivered within SendTimeout; logged, not fatal
	require.NoError(t, h.wait())
	require.Empty(t, h.fatal)
}

func TestTarget_plant_gone(t *testing.T) {
	h := newHarness(t, 10)
	h.start()
	h.subscriber()

	h.plantMB.Close()

	err := h.wait()
	require.ErrorIs(t, err, ErrPlantGone)
	require.Len(t, h.fatal, 1)
	require.ErrorIs(t, h.fatal[0], ErrPlantGone)
}

func TestTarget_register_failure(t *testing.T) {
	h := newHarness(t, 10)
	h.plantMB.Close()
	h.start()

	err := h.wait()
	require.ErrorIs(t, err, ErrRegister)
	require.ErrorIs(t, err, mailbox.ErrMailboxClosed)
	require.Len(t, h.fatal, 1)
}

func TestTarget_register_timeout(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.plantMB.Sender().TrySend(plant.SetVelocity{}))
	h.start()

	err := h.wait()
	require.ErrorIs(t, err, ErrRegister)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTarget_Receive_keeps_latest(t *testing.T) {
	tg := New(Options{Params: testParams}, mailbox.New[plant.In](1).Sender())
	rx := mailbox.New[float64](4)
	for _, v := range []float64{1, 2, 3} {
		require.NoError(t, rx.Sender().TrySend(v))
	}
	tg.Receive(t.Context(), rx)
	require.Equal(t, Status{Position: 3, Observed: true}, tg.Status())
}
