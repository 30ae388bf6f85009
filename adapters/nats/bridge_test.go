package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/ctrlloop-go/core/mailbox"
	"github.com/codewandler/ctrlloop-go/core/plant"
)

func runBridge(t *testing.T, run func(context.Context, *mailbox.Sender[plant.In]) error, tx *mailbox.Sender[plant.In]) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	errs := make(chan error, 1)
	go func() { errs <- run(ctx, tx) }()
	return func() {
		t.Helper()
		cancel()
		select {
		case err := <-errs:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("bridge did not stop")
		}
	}
}

func TestNats_Bridges(t *testing.T) {
	connect := ReuseConnection(NewTestContainer(t))
	nc, disconnect, err := connect()
	require.NoError(t, err)
	t.Cleanup(disconnect)

	t.Run("position publisher", func(t *testing.T) {
		pub, err := NewPositionPublisher(PositionPublisherConfig{Connect: connect, SubjectPrefix: "test"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = pub.Close() })
		require.Equal(t, "test.position", pub.Subject())

		updates, err := nc.SubscribeSync(pub.Subject())
		require.NoError(t, err)
		require.NoError(t, nc.Flush())

		plantMB := mailbox.New[plant.In](4)
		stop := runBridge(t, pub.Run, plantMB.Sender())

		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		msg, err := plantMB.Recv(ctx)
		require.NoError(t, err)
		reg, ok := msg.(plant.RegisterSubscriber)
		require.True(t, ok)

		require.NoError(t, reg.Subscriber.TrySend(1.5))
		require.NoError(t, reg.Subscriber.TrySend(2.5))

		for i, want := range []float64{1.5, 2.5} {
			m, err := updates.NextMsg(2 * time.Second)
			require.NoError(t, err)
			require.Equal(t, "application/json", m.Header.Get(headerContentType))
			var upd PositionUpdate
			require.NoError(t, json.Unmarshal(m.Data, &upd))
			require.Equal(t, uint64(i+1), upd.Seq)
			require.Equal(t, want, upd.Position)
		}

		stop()
		require.True(t, reg.Subscriber.Closed(), "stopping the bridge unsubscribes it")
		require.Equal(t, uint64(2), pub.Published())
	})

	t.Run("command listener", func(t *testing.T) {
		l, err := NewCommandListener(CommandListenerConfig{Connect: connect, SubjectPrefix: "test"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = l.Close() })

		plantMB := mailbox.New[plant.In](1)
		stop := runBridge(t, l.Run, plantMB.Sender())

		request := func(payload string) CommandReply {
			t.Helper()
			var (
				reply CommandReply
				resp  []byte
			)
			require.Eventually(t, func() bool {
				m, err := nc.Request(l.Subject(), []byte(payload), 200*time.Millisecond)
				if err != nil {
					return false
				}
				resp = m.Data
				return true
			}, 2*time.Second, 10*time.Millisecond)
			require.NoError(t, json.Unmarshal(resp, &reply))
			return reply
		}

		require.Equal(t, CommandReply{Accepted: true}, request(`{"velocity":0.75}`))
		msg, ok := plantMB.TryRecv()
		require.True(t, ok)
		require.Equal(t, plant.SetVelocity{Velocity: 0.75}, msg)

		bad := request(`{"velocity":`)
		require.False(t, bad.Accepted)
		require.Contains(t, bad.Error, ErrInvalidCommand.Error())

		// plant mailbox full: dropped, listener keeps running
		require.Equal(t, CommandReply{Accepted: true}, request(`{"velocity":1}`))
		full := request(`{"velocity":2}`)
		require.False(t, full.Accepted)
		require.Contains(t, full.Error, mailbox.ErrMailboxFull.Error())

		stop()
	})
}
