package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drain[M any](mb *Mailbox[M]) []M {
	var out []M
	for {
		m, ok := mb.TryRecv()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

func TestMailbox_defaults(t *testing.T) {
	mb := New[int](0)
	require.Equal(t, DefaultCapacity, mb.Cap())
	require.Equal(t, 0, mb.Len())
}

func TestMailbox_FIFO(t *testing.T) {
	mb := New[int](64)
	tx := mb.Sender()

	for i := range 64 {
		if i%2 == 0 {
			require.NoError(t, tx.TrySend(i))
		} else {
			require.NoError(t, tx.Send(t.Context(), i))
		}
	}

	got := drain(mb)
	require.Len(t, got, 64)
	for i, v := range got {
		require.Equal(t, i, v)
	}

	_, ok := mb.TryRecv()
	require.False(t, ok)
}

func TestMailbox_FIFO_per_producer(t *testing.T) {
	type msg struct{ P, Seq int }
	const (
		producers = 4
		perProd   = 50
	)
	mb := New[msg](producers * perProd)

	var wg sync.WaitGroup
	for p := range producers {
		tx := mb.Sender()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProd {
				require.NoError(t, tx.Send(t.Context(), msg{P: p, Seq: i}))
			}
		}()
	}
	wg.Wait()

	last := map[int]int{}
	for _, m := range drain(mb) {
		prev, seen := last[m.P]
		if seen {
			require.Greater(t, m.Seq, prev, "producer %d out of order", m.P)
		}
		last[m.P] = m.Seq
	}
	require.Len(t, last, producers)
}

func TestMailbox_TrySend_full(t *testing.T) {
	mb := New[int](2)
	tx := mb.Sender()

	require.NoError(t, tx.TrySend(1))
	require.NoError(t, tx.TrySend(2))
	require.ErrorIs(t, tx.TrySend(3), ErrMailboxFull)

	require.Equal(t, []int{1, 2}, drain(mb))
}

func TestMailbox_Send_blocks_until_room(t *testing.T) {
	mb := New[int](1)
	tx := mb.Sender()
	require.NoError(t, tx.TrySend(1))

	sent := make(chan error, 1)
	go func() { sent <- tx.Send(context.Background(), 2) }()

	select {
	case <-sent:
		t.Fatal("send should block while the mailbox is full")
	case <-time.After(20 * time.Millisecond):
	}

	v, ok := mb.TryRecv()
	require.True(t, ok)
	require.Equal(t, 1, v)

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	v, ok = mb.TryRecv()
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestMailbox_Send_ctx(t *testing.T) {
	mb := New[int](1)
	tx := mb.Sender()
	require.NoError(t, tx.TrySend(1))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, tx.Send(ctx, 2), context.DeadlineExceeded)
}

func TestMailbox_Close(t *testing.T) {
	mb := New[int](1)
	tx := mb.Sender()
	require.NoError(t, tx.TrySend(1))

	blocked := make(chan error, 1)
	go func() { blocked <- tx.Send(context.Background(), 2) }()

	require.False(t, tx.Closed())
	mb.Close()
	mb.Close()

	select {
	case err := <-blocked:
		require.ErrorIs(t, err, ErrMailboxClosed)
	case <-time.After(time.Second):
		t.Fatal("close should unblock senders")
	}

	require.True(t, tx.Closed())
	require.True(t, tx.Clone().Closed())
	require.ErrorIs(t, tx.TrySend(3), ErrMailboxClosed)
	require.ErrorIs(t, tx.Send(t.Context(), 3), ErrMailboxClosed)

	select {
	case <-tx.Done():
	default:
		t.Fatal("Done() should be closed")
	}

	_, err := mb.Recv(t.Context())
	if err == nil {
		// a queued message may still be picked up by select; the next must fail
		_, err = mb.Recv(t.Context())
	}
	require.ErrorIs(t, err, ErrMailboxClosed)
}

func TestMailbox_send_after_close_with_room(t *testing.T) {
	mb := New[int](4096)
	tx := mb.Sender()
	mb.Close()

	// room in the queue must not make a send to a closed mailbox succeed
	for i := range 1000 {
		require.ErrorIs(t, tx.TrySend(i), ErrMailboxClosed)
		require.ErrorIs(t, tx.Send(t.Context(), i), ErrMailboxClosed)
	}
}

func TestMailbox_send_racing_close(t *testing.T) {
	for range 200 {
		mb := New[int](8)
		tx := mb.Sender()

		closed := make(chan struct{})
		go func() {
			mb.Close()
			close(closed)
		}()

		var accepted []int
		for i := range 8 {
			if tx.TrySend(i) == nil {
				accepted = append(accepted, i)
			}
		}
		<-closed

		// everything reported as sent was queued before the close and is
		// still in the queue in order
		for _, want := range accepted {
			got, ok := mb.TryRecv()
			require.True(t, ok)
			require.Equal(t, want, got)
		}
	}
}

func TestMailbox_Recv(t *testing.T) {
	mb := New[string](1)
	go func() { _ = mb.Sender().Send(context.Background(), "hi") }()

	v, err := mb.Recv(t.Context())
	require.NoError(t, err)
	require.Equal(t, "hi", v)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = mb.Recv(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
