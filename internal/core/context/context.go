// Package context carries request-scoped tracing and acting-user values
// through the service layer.
package context

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// SystemUser authors changes made outside a user request, e.g. by the
// seeder or the reprice command.
const SystemUser = "system"

// TraceContext correlates log lines and audit rows of one request.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

// NewTraceContext keeps the caller-supplied ids and generates the missing ones.
// SpanID is always fresh.
func NewTraceContext(requestID, traceID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return &TraceContext{
		TraceID:   traceID,
		SpanID:    strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		RequestID: requestID,
	}
}

// UserContext names who triggered a pricing change. Authentication is done
// upstream and the value is trusted as given.
type UserContext struct {
	UserID string
}

type ctxKey int

const (
	traceKey ctxKey = iota
	userKey
)

func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey, trace)
}

// GetTrace returns nil outside a traced request.
func GetTrace(ctx context.Context) *TraceContext {
	trace, _ := ctx.Value(traceKey).(*TraceContext)
	return trace
}

func GetRequestID(ctx context.Context) string {
	if trace := GetTrace(ctx); trace != nil {
		return trace.RequestID
	}
	return ""
}

func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func GetUser(ctx context.Context) *UserContext {
	user, _ := ctx.Value(userKey).(*UserContext)
	return user
}

func GetUserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.UserID
	}
	return ""
}

// ChangedBy is the author stamped on history and audit rows.
func ChangedBy(ctx context.Context) string {
	if uid := GetUserID(ctx); uid != "" {
		return uid
	}
	return SystemUser
}
