package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangedBy(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, SystemUser, ChangedBy(ctx))

	ctx = WithUser(ctx, &UserContext{UserID: "farmaceutica.ana"})
	assert.Equal(t, "farmaceutica.ana", ChangedBy(ctx))

	ctx = WithUser(ctx, &UserContext{})
	assert.Equal(t, SystemUser, ChangedBy(ctx))
}

func TestNewTraceContext_KeepsSuppliedIDs(t *testing.T) {
	tc := NewTraceContext("req-1", "trace-1")

	assert.Equal(t, "req-1", tc.RequestID)
	assert.Equal(t, "trace-1", tc.TraceID)
	assert.Len(t, tc.SpanID, 16)
	assert.NotContains(t, tc.SpanID, "-")
}

func TestNewTraceContext_GeneratesMissingIDs(t *testing.T) {
	a := NewTraceContext("", "")
	b := NewTraceContext("", "")

	assert.NotEmpty(t, a.RequestID)
	assert.NotEmpty(t, a.TraceID)
	assert.NotEqual(t, a.RequestID, b.RequestID)
}

func TestTraceRoundTrip(t *testing.T) {
	tc := NewTraceContext("", "")
	ctx := WithTrace(context.Background(), tc)

	assert.Same(t, tc, GetTrace(ctx))
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
	assert.Nil(t, GetTrace(context.Background()))
	assert.Equal(t, "", GetRequestID(context.Background()))
}
