package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmacia/internal/core/apperror"
	appctx "farmacia/internal/core/context"
	"farmacia/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type acquireCall struct {
	key, user, operation, hash string
}

type fakeKeys struct {
	replay     *postgres.IdempotencyReplay
	acquireErr error

	acquired  []acquireCall
	completed []int
	failed    []int
}

func (f *fakeKeys) AcquireKey(_ context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error) {
	f.acquired = append(f.acquired, acquireCall{key, userID, operation, requestHash})
	return f.replay, f.acquireErr
}

func (f *fakeKeys) CompleteKey(_ context.Context, _ string, status int, _ string, _ any) error {
	f.completed = append(f.completed, status)
	return nil
}

func (f *fakeKeys) FailKey(_ context.Context, _ string, status int, _ string, _ any) error {
	f.failed = append(f.failed, status)
	return nil
}

func newEngine(store IdempotencyKeys, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(UserContext())
	r.Use(Idempotency(store))
	r.POST("/pricing/bulk", handler)
	r.GET("/pricing/bulk", handler)
	return r
}

func serve(r http.Handler, method, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/pricing/bulk", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_WithoutKeyPassesThrough(t *testing.T) {
	store := &fakeKeys{}
	calls := 0
	r := newEngine(store, func(c *gin.Context) {
		calls++
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodPost, `{}`, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, calls)
	assert.Empty(t, store.acquired)
}

func TestIdempotency_IgnoresReads(t *testing.T) {
	store := &fakeKeys{}
	r := newEngine(store, func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "", map[string]string{HeaderIdempotencyKey: "k"})

	assert.Empty(t, store.acquired)
}

func TestIdempotency_AcquiresWithRequestFingerprint(t *testing.T) {
	store := &fakeKeys{}
	var seenBody string
	r := newEngine(store, func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		seenBody = string(b)
		CompleteIdempotency(c, http.StatusOK, "application/json", gin.H{"ok": true})
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := serve(r, http.MethodPost, `{"markup":"2"}`, map[string]string{
		HeaderIdempotencyKey: "k-1",
		HeaderUserID:         "ana",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"markup":"2"}`, seenBody, "body must be readable after hashing")
	require.Len(t, store.acquired, 1)
	call := store.acquired[0]
	assert.Equal(t, "k-1", call.key)
	assert.Equal(t, "ana", call.user)
	assert.Equal(t, "POST /pricing/bulk", call.operation)
	assert.Len(t, call.hash, 64)
	assert.Equal(t, []int{http.StatusOK}, store.completed)
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := &fakeKeys{replay: &postgres.IdempotencyReplay{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"total":3}`),
	}}
	calls := 0
	r := newEngine(store, func(c *gin.Context) { calls++ })

	w := serve(r, http.MethodPost, `{}`, map[string]string{HeaderIdempotencyKey: "k-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":3}`, w.Body.String())
	assert.Zero(t, calls)
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	store := &fakeKeys{}
	r := newEngine(store, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodPost, `{}`, map[string]string{
		HeaderIdempotencyKey: strings.Repeat("k", maxIdempotencyKeyLen+1),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.acquired)
}

func TestIdempotency_BodyTooLarge(t *testing.T) {
	store := &fakeKeys{}
	r := newEngine(store, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodPost, strings.Repeat("x", maxIdempotencyBodyBytes+1), map[string]string{
		HeaderIdempotencyKey: "k",
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIdempotency_ConflictFromStore(t *testing.T) {
	store := &fakeKeys{acquireErr: apperror.NewIdempotencyConflict("k")}
	r := newEngine(store, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodPost, `{}`, map[string]string{HeaderIdempotencyKey: "k"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), apperror.CodeIdempotency)
}

func TestIdempotency_StoreFailureIsInternal(t *testing.T) {
	store := &fakeKeys{acquireErr: errors.New("connection reset")}
	r := newEngine(store, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodPost, `{}`, map[string]string{HeaderIdempotencyKey: "k"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestErrorHandler_FailsIdempotencyKey(t *testing.T) {
	store := &fakeKeys{}
	r := newEngine(store, func(c *gin.Context) {
		_ = c.Error(apperror.NewMarkupViolation(apperror.CodeAboveMaximum, "markup above maximum"))
		c.Abort()
	})

	w := serve(r, http.MethodPost, `{}`, map[string]string{HeaderIdempotencyKey: "k"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []int{http.StatusUnprocessableEntity}, store.failed)
	assert.Empty(t, store.completed)
}

func TestUserContext(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"absent", "", appctx.SystemUser},
		{"trimmed", "  ana  ", "ana"},
		{"too long", strings.Repeat("u", maxUserIDLen+1), appctx.SystemUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			r := gin.New()
			r.Use(UserContext())
			r.GET("/", func(c *gin.Context) {
				got = appctx.ChangedBy(c.Request.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderUserID, tt.header)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecovery_RendersInternalError(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.Use(ErrorHandler())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
