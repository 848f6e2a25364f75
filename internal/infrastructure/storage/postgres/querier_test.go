package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recordingQuerier captures Exec calls. Query paths are not exercised.
type recordingQuerier struct {
	sql  []string
	args [][]any
	tag  pgconn.CommandTag
	err  error
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.sql = append(q.sql, sql)
	q.args = append(q.args, args)
	return q.tag, q.err
}

func (q *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("recordingQuerier: Query not supported")
}

func (q *recordingQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

func (q *recordingQuerier) GetQuerier(context.Context) Querier { return q }

type errRow struct{}

func (errRow) Scan(...any) error { return errors.New("recordingQuerier: QueryRow not supported") }
