package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Memory(t *testing.T) {
	type snapshot struct {
		Position float64
		Velocity float64
	}
	s := NewMemStore()

	_, err := Get[snapshot](t.Context(), s, "plant")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Put(t.Context(), s, "p1", snapshot{Position: 1, Velocity: 0.5}, PutOptions{}))
	require.NoError(t, Put(t.Context(), s, "p2", snapshot{Position: 2}, PutOptions{}))

	loaded, err := Get[snapshot](t.Context(), s, "p1")
	require.NoError(t, err)
	require.Equal(t, snapshot{Position: 1, Velocity: 0.5}, loaded)

	require.NoError(t, s.Delete(t.Context(), "p1"))
	_, err = Get[snapshot](t.Context(), s, "p1")
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_Memory_TTL(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewMemStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(t.Context(), "k", Entry{Data: []byte("1")}, PutOptions{TTL: time.Minute}))

	e, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, now, e.Stored)

	now = now.Add(time.Minute)
	_, err = s.Get(t.Context(), "k")
	require.ErrorIs(t, err, ErrNotFound)
}
