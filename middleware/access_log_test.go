package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{name: "success", status: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{name: "client error", status: http.StatusBadRequest, wantLevel: zapcore.WarnLevel},
		{name: "server error", status: http.StatusBadGateway, wantLevel: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			logger := zap.New(core)

			var sawLogger *zap.Logger
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sawLogger = LoggerFromContext(r.Context(), nil)
				w.WriteHeader(tt.status)
			})

			handler := chimw.RequestID(AccessLog(logger)(next))
			req := httptest.NewRequest(http.MethodPost, "/api/billbuddy/ask", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
			require.NotNil(t, sawLogger, "handler sees a request-scoped logger")

			entries := logs.FilterMessage("request completed").All()
			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, "POST", fields["method"])
			assert.Equal(t, "/api/billbuddy/ask", fields["path"])
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}

func TestAccessLog_ImplicitStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	w := httptest.NewRecorder()
	AccessLog(zap.New(core))(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(http.StatusOK), logs.All()[0].ContextMap()["status"])
	assert.Equal(t, int64(2), logs.All()[0].ContextMap()["bytes"])
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestIDFromContext(ctx))

	ctx = context.WithValue(ctx, chimw.RequestIDKey, "chi-id")
	assert.Equal(t, "chi-id", GetRequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "own-id")
	assert.Equal(t, "own-id", GetRequestIDFromContext(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, LoggerFromContext(context.Background(), fallback))

	scoped := zap.NewExample()
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, LoggerFromContext(ctx, fallback))
}
