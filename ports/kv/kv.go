// Package kv is the key/value storage port used to persist small records
// such as plant snapshots. Adapters (in-memory, NATS JetStream) implement
// [Store].
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

type Entry struct {
	Data []byte
	// Stored is set by the store on Get.
	Stored time.Time
}

type PutOptions struct {
	// TTL expires the entry after the given duration. Zero keeps it forever.
	TTL time.Duration
}

type Store interface {
	Put(ctx context.Context, key string, entry Entry, opts PutOptions) error
	Get(ctx context.Context, key string) (entry Entry, err error)
	Delete(ctx context.Context, key string) error
}

// Put stores v as JSON under key.
func Put[T any](ctx context.Context, store Store, key string, v T, opts PutOptions) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, Entry{Data: data}, opts)
}

// Get loads the JSON value stored under key. Missing keys return ErrNotFound.
func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	entry, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	err = json.Unmarshal(entry.Data, &out)
	return
}
