package postgres

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmacia/internal/core/apperror"
)

func newTestIdempotencyStore(q *recordingQuerier, now time.Time) *IdempotencyStore {
	s := NewIdempotencyStore(q, time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func TestIdempotencyDecide(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	const (
		key  = "k-1"
		user = "u-1"
		op   = "POST /api/v1/pricing/bulk"
		hash = "abc"
	)
	base := IdempotencyRecord{Key: key, UserID: user, Operation: op, RequestHash: hash}

	t.Run("completed response is replayed", func(t *testing.T) {
		rec := base
		rec.Status = IdempotencyStatusSuccess
		rec.StatusCode = http.StatusCreated
		rec.Response = []byte(`{"id":"x"}`)

		replay, err := newTestIdempotencyStore(&recordingQuerier{}, now).decide(context.Background(), rec, key, user, op, hash, now)
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, http.StatusCreated, replay.StatusCode)
		assert.Equal(t, "application/json", replay.ContentType)
	})

	t.Run("different body is a mismatch", func(t *testing.T) {
		rec := base
		rec.Status = IdempotencyStatusSuccess
		_, err := newTestIdempotencyStore(&recordingQuerier{}, now).decide(context.Background(), rec, key, user, op, "other", now)
		assert.Equal(t, apperror.CodeIdempotency, apperror.Code(err))
	})

	t.Run("fresh pending key conflicts", func(t *testing.T) {
		rec := base
		rec.Status = IdempotencyStatusPending
		rec.UpdatedAt = now.Add(-10 * time.Second)
		_, err := newTestIdempotencyStore(&recordingQuerier{}, now).decide(context.Background(), rec, key, user, op, hash, now)
		assert.Equal(t, apperror.CodeIdempotency, apperror.Code(err))
	})

	t.Run("stale pending key is reclaimed", func(t *testing.T) {
		q := &recordingQuerier{}
		rec := base
		rec.Status = IdempotencyStatusPending
		rec.UpdatedAt = now.Add(-2 * time.Minute)
		replay, err := newTestIdempotencyStore(q, now).decide(context.Background(), rec, key, user, op, hash, now)
		require.NoError(t, err)
		assert.Nil(t, replay)
		require.Len(t, q.sql, 1)
		assert.Contains(t, q.sql[0], "UPDATE sys_idempotency")
	})
}

func TestIdempotencyCompleteKey(t *testing.T) {
	q := &recordingQuerier{}
	s := newTestIdempotencyStore(q, time.Now())

	require.NoError(t, s.CompleteKey(context.Background(), "k-1", http.StatusOK, "application/json", map[string]int{"a": 1}))
	require.Len(t, q.args, 1)
	assert.Equal(t, IdempotencyStatusSuccess, q.args[0][0])
	assert.Equal(t, []byte(`{"a":1}`), q.args[0][1])
	assert.True(t, strings.Contains(q.sql[0], "WHERE idempotency_key = $6"))
}

func TestReplayOf_NoContent(t *testing.T) {
	replay := replayOf(IdempotencyRecord{StatusCode: http.StatusNoContent})
	assert.Equal(t, http.StatusNoContent, replay.StatusCode)
	assert.Empty(t, replay.ContentType)
}
