// Package executor runs stored-function calls, consulting the response cache first.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/rurair-map/internal/cache/keys"
	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/observability"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
)

type Interface interface {
	Execute(ctx context.Context, call dispatch.FunctionCall) ([]byte, error)
}

// Store executes a call against the data engine. A SQL NULL result is (nil, nil).
type Store interface {
	CallJSON(ctx context.Context, call dispatch.FunctionCall) ([]byte, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

type Option func(*Executor)

// WithCache enables the response cache. ttlFor picks the TTL per function name;
// a non-positive TTL skips the write.
func WithCache(c Cache, opTimeout time.Duration, ttlFor func(function string) time.Duration) Option {
	return func(e *Executor) {
		e.cache = c
		e.opTimeout = opTimeout
		e.ttlFor = ttlFor
	}
}

type Executor struct {
	logger    *slog.Logger
	store     Store
	cache     Cache
	opTimeout time.Duration
	ttlFor    func(string) time.Duration
	startNow  func() time.Time // for tests
}

func New(logger *slog.Logger, store Store, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		logger:   logger,
		store:    store,
		startNow: time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute returns the JSON text produced by call. Cache failures are logged and
// bypassed; the store is the source of truth.
func (e *Executor) Execute(ctx context.Context, call dispatch.FunctionCall) ([]byte, error) {
	var key string
	if e.cache != nil {
		key = keys.Key(call.Name, call.SQLArgs())
		if b, ok := e.lookup(ctx, key); ok {
			observability.IncCacheHit()
			e.logger.Debug("cache hit", "function", call.Name)
			return b, nil
		}
		observability.IncCacheMiss()
	}

	start := e.startNow()
	b, err := e.store.CallJSON(ctx, call)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("stored function done",
		"call", call.String(),
		"bytes", len(b),
		"duration", time.Since(start).String())

	if b == nil {
		return nil, nil
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%s returned malformed JSON: %w", call.Name, apperr.ErrUpstream)
	}

	if e.cache != nil {
		e.fill(ctx, call.Name, key, b)
	}
	return b, nil
}

func (e *Executor) lookup(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	b, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache get failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !json.Valid(b) {
		e.logger.Warn("cache entry is not JSON, ignoring", "key", key)
		return nil, false
	}
	return b, true
}

func (e *Executor) fill(ctx context.Context, function, key string, b []byte) {
	ttl := time.Duration(0)
	if e.ttlFor != nil {
		ttl = e.ttlFor(function)
	}
	if ttl <= 0 {
		return
	}
	ctx, cancel := e.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := e.cache.Set(ctx, key, b, ttl); err != nil {
		e.logger.Warn("cache set failed", "key", key, "err", err)
	}
}

// InvalidateFunctions deletes every cached response of the named functions.
func (e *Executor) InvalidateFunctions(ctx context.Context, functions ...string) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	total := 0
	for _, fn := range functions {
		n, err := e.cache.DelPrefix(ctx, keys.Prefix(fn))
		total += n
		if err != nil {
			return total, fmt.Errorf("invalidate %s: %w", fn, err)
		}
	}
	return total, nil
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opTimeout)
}
