// Package pgstore executes stored-function calls against PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/core/observability"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/tracing"
)

// Querier is the part of pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db      Querier
	pool    *pgxpool.Pool
	timeout time.Duration
}

type Option func(*pgxpool.Config)

func WithMaxConns(n int) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = int32(min(n, 1<<15))
		}
	}
}

// New opens a pool and pings it. timeout bounds every stored-function call.
func New(ctx context.Context, dsn string, timeout time.Duration, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	for _, o := range opts {
		o(cfg)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: postgres ping: %w", apperr.ErrNetwork, err)
	}
	s := NewWithQuerier(pool, timeout)
	s.pool = pool
	return s, nil
}

// NewWithQuerier wraps an existing connection or pool.
func NewWithQuerier(q Querier, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Store{db: q, timeout: timeout}
}

// CallJSON runs call and returns the function's JSON text. A NULL result is (nil, nil).
func (s *Store) CallJSON(ctx context.Context, call dispatch.FunctionCall) ([]byte, error) {
	query, err := call.SQL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}

	ctx, span := tracing.Start(ctx, "pg."+call.Name, attribute.String("db.function", call.Name))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var out *string
	err = s.db.QueryRow(ctx, query, call.SQLArgs()...).Scan(&out)
	observability.ObserveUpstreamLatency("pg."+call.Name, time.Since(start).Seconds())

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		err = classify(call.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "stored function failed")
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return []byte(*out), nil
}

func classify(fn string, err error) error {
	var (
		ce *pgconn.ConnectError
		ne net.Error
	)
	switch {
	case errors.As(err, &ce), errors.As(err, &ne), pgconn.Timeout(err),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", apperr.ErrNetwork, fn, err)
	default:
		return fmt.Errorf("%w: %s: %w", apperr.ErrUpstream, fn, err)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
