package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"farmacia/internal/core/tx"
	"farmacia/pkg/logger"
)

var tracer = otel.Tracer("farmacia/tx")

var _ tx.Manager = (*TxManager)(nil)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories
// work the same inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierProvider hands repositories the querier bound to ctx.
type QuerierProvider interface {
	GetQuerier(ctx context.Context) Querier
}

// TxOption tunes a TxManager.
type TxOption func(*TxManager)

// WithIsolation sets the isolation level of every transaction.
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(m *TxManager) { m.isolation = level }
}

// WithStatementTimeout caps each statement run inside a transaction.
// Zero leaves the server default in place.
func WithStatementTimeout(d time.Duration) TxOption {
	return func(m *TxManager) { m.statementTimeout = d }
}

// TxManager runs functions inside pgx transactions carried by context.
// A nested call joins the transaction already in ctx.
type TxManager struct {
	pool             *pgxpool.Pool
	isolation        pgx.TxIsoLevel
	statementTimeout time.Duration
}

func NewTxManager(pool *Pool, opts ...TxOption) *TxManager {
	m := &TxManager{
		pool:             pool.Pool,
		isolation:        pgx.ReadCommitted,
		statementTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type txKey struct{}

func txFrom(ctx context.Context) pgx.Tx {
	t, _ := ctx.Value(txKey{}).(pgx.Tx)
	return t
}

// RunInTransaction commits when fn returns nil and rolls back otherwise.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "pricing.tx",
		trace.WithAttributes(attribute.String("db.isolation", string(m.isolation))))
	defer span.End()

	pgTx, err := m.begin(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "begin")
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, pgTx)); err != nil {
		// ctx may already be cancelled here
		if rbErr := pgTx.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "cause", err)
		}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		span.SetStatus(codes.Error, "commit")
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (m *TxManager) begin(ctx context.Context) (pgx.Tx, error) {
	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: m.isolation})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	if m.statementTimeout <= 0 {
		return pgTx, nil
	}
	ms := m.statementTimeout.Milliseconds()
	if _, err := pgTx.Exec(ctx, "SELECT set_config('statement_timeout', $1, true)", fmt.Sprintf("%dms", ms)); err != nil {
		_ = pgTx.Rollback(context.Background())
		return nil, fmt.Errorf("set statement_timeout: %w", err)
	}
	return pgTx, nil
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := txFrom(ctx); t != nil {
		return t
	}
	return m.pool
}
