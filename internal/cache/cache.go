// Package cache provides time-bounded result caching for generated series and
// external API responses. Stores are injected into their callers; nothing here
// is process-global.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache store is closed")

// Store holds opaque values until they expire.
type Store interface {
	// Get returns the value for key if it exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteExpired removes expired entries and reports how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
	Close() error
}

type options struct {
	now func() time.Time
}

// Option configures a Store.
type Option func(*options)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New opens the store selected by driver. Unknown drivers fall back to memory.
func New(ctx context.Context, driver, path string, logger *zap.Logger, opts ...Option) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch driver {
	case constants.CacheDriverSQLite:
		store, err := NewSQLite(ctx, path, opts...)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite cache",
			zap.String("op", "cache.New"),
			zap.String("path", path),
		)
		return store, nil
	case "", constants.CacheDriverMemory:
	default:
		logger.Warn("unknown cache driver, using memory",
			zap.String("op", "cache.New"),
			zap.String("driver", driver),
		)
	}
	return NewMemory(opts...), nil
}

// Key derives a cache key from a function identity and its arguments.
// Arguments are msgpack-encoded with sorted map keys so equal arguments
// always produce the same key.
func Key(fn string, args ...interface{}) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("failed to encode cache key for %s: %w", fn, err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return fn + ":" + hex.EncodeToString(sum[:16]), nil
}

// Memo memoizes one function's results in a Store.
type Memo[T any] struct {
	store  Store
	fn     string
	ttl    time.Duration
	logger *zap.Logger
}

// NewMemo creates a memoizer for the function identified by fn. A nil store
// disables caching.
func NewMemo[T any](store Store, fn string, ttl time.Duration, logger *zap.Logger) *Memo[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memo[T]{store: store, fn: fn, ttl: ttl, logger: logger}
}

// Do returns the cached value for args or calls compute. The computed value is
// stored only when compute reports it as cacheable and returns no error. Cache
// failures are logged and never fail the call.
func (m *Memo[T]) Do(ctx context.Context, args []interface{}, compute func(context.Context) (T, bool, error)) (T, error) {
	if m == nil || m.store == nil || m.ttl <= 0 {
		value, _, err := compute(ctx)
		return value, err
	}

	key, err := Key(m.fn, args...)
	if err != nil {
		m.logger.Warn("cache key unavailable",
			zap.String("op", "cache.Memo.Do"),
			zap.String("fn", m.fn),
			zap.Error(err),
		)
		value, _, err := compute(ctx)
		return value, err
	}

	if data, ok, err := m.store.Get(ctx, key); err != nil {
		m.logger.Warn("cache read failed",
			zap.String("op", "cache.Memo.Do"),
			zap.String("fn", m.fn),
			zap.Error(err),
		)
	} else if ok {
		var cached T
		if err := msgpack.Unmarshal(data, &cached); err == nil {
			m.logger.Debug("cache hit",
				zap.String("op", "cache.Memo.Do"),
				zap.String("fn", m.fn),
			)
			return cached, nil
		}
		m.logger.Warn("discarding undecodable cache entry",
			zap.String("op", "cache.Memo.Do"),
			zap.String("fn", m.fn),
		)
	}

	value, cacheable, err := compute(ctx)
	if err != nil || !cacheable {
		return value, err
	}

	data, err := msgpack.Marshal(value)
	if err == nil {
		err = m.store.Set(ctx, key, data, m.ttl)
	}
	if err != nil {
		m.logger.Warn("cache write failed",
			zap.String("op", "cache.Memo.Do"),
			zap.String("fn", m.fn),
			zap.Error(err),
		)
	}
	return value, nil
}
