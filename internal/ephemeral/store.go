// Package ephemeral is the expiring key-value container shared by the
// challenge and battle coordinators. Entries carry a TTL and are treated as
// absent the moment it elapses; expiry is evaluated lazily by the backing
// store at lookup time, never by a sweep of ours.
package ephemeral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrConflict reports that a concurrent writer touched one of the watched
// keys mid-update. Callers surface it as a "try again" outcome.
var ErrConflict = errors.New("concurrent update on watched key")

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// NewStoreFromURL connects to Redis and verifies the connection.
func NewStoreFromURL(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Put stores value under key with the given TTL, replacing any existing
// entry.
func (s *Store) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// PutNX inserts value under key only if the key is absent, with the given
// TTL. Returns false when an unexpired entry already exists. The
// check-and-insert is a single Redis command, so two concurrent callers
// cannot both observe "absent".
func (s *Store) PutNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", key, err)
	}
	ok, err := s.rdb.SetNX(ctx, key, raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// Get loads the entry under key into dest. Returns false when the key is
// absent or its TTL has elapsed.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Tx is the view handed to an Update closure: reads see the watched keys,
// writes are staged and applied atomically after the closure returns.
type Tx struct {
	ctx    context.Context
	tx     *redis.Tx
	staged []func(pipe redis.Pipeliner)
}

func (t *Tx) Get(key string, dest any) (bool, error) {
	raw, err := t.tx.Get(t.ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (t *Tx) Set(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	t.staged = append(t.staged, func(pipe redis.Pipeliner) {
		pipe.Set(t.ctx, key, raw, ttl)
	})
	return nil
}

func (t *Tx) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	t.staged = append(t.staged, func(pipe redis.Pipeliner) {
		pipe.Del(t.ctx, keys...)
	})
}

// Update runs fn under an optimistic WATCH of keys. Reads inside fn and the
// staged writes execute as one atomic check-then-act against concurrent
// Update or PutNX calls on the same keys. A mid-flight write by someone else
// aborts with ErrConflict; fn returning an error aborts without writing.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error, keys ...string) error {
	err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
		t := &Tx{ctx: ctx, tx: rtx}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.staged) == 0 {
			return nil
		}
		pipe := rtx.TxPipeline()
		for _, stage := range t.staged {
			stage(pipe)
		}
		_, err := pipe.Exec(ctx)
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}
