package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/ctrlloop-go/ports/kv"
)

type KvConfig struct {
	Connect Connector // If nil, ConnectDefault() is used.
	Bucket  string
}

// KvStore implements kv.Store on a JetStream key/value bucket.
type KvStore struct {
	kv      jetstream.KeyValue
	closeNc closeFunc
	now     func() time.Time
}

// record is the stored representation of a kv.Entry.
type record struct {
	Data    []byte    `json:"data"`
	Stored  time.Time `json:"stored"`
	Expires time.Time `json:"expires,omitzero"`
}

func NewKvStore(ctx context.Context, cfg KvConfig) (*KvStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Bucket,
		Storage:  jetstream.FileStorage,
		History:  1,
		MaxBytes: 1024 * 1024,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("nats: create kv bucket %s: %w", cfg.Bucket, err)
	}

	return &KvStore{kv: bucket, closeNc: closeNc, now: time.Now}, nil
}

func (k *KvStore) Put(ctx context.Context, key string, entry kv.Entry, opts kv.PutOptions) error {
	now := k.now()
	r := record{Data: entry.Data, Stored: now}
	if opts.TTL > 0 {
		r.Expires = now.Add(opts.TTL)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := k.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("nats: put %s: %w", key, err)
	}
	return nil
}

func (k *KvStore) Get(ctx context.Context, key string) (kv.Entry, error) {
	v, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return kv.Entry{}, kv.ErrNotFound
		}
		return kv.Entry{}, fmt.Errorf("nats: get %s: %w", key, err)
	}
	var r record
	if err := json.Unmarshal(v.Value(), &r); err != nil {
		return kv.Entry{}, fmt.Errorf("nats: decode %s: %w", key, err)
	}
	if !r.Expires.IsZero() && !k.now().Before(r.Expires) {
		_ = k.kv.Delete(ctx, key)
		return kv.Entry{}, kv.ErrNotFound
	}
	return kv.Entry{Data: r.Data, Stored: r.Stored}, nil
}

func (k *KvStore) Delete(ctx context.Context, key string) error {
	if err := k.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats: delete %s: %w", key, err)
	}
	return nil
}

func (k *KvStore) Close() error {
	k.closeNc()
	return nil
}

var _ kv.Store = (*KvStore)(nil)
