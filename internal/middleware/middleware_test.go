package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/runloader"
)

type emptyRepo struct{}

func (emptyRepo) Save(context.Context, domain.RunSummary) error { return nil }
func (emptyRepo) GetByKey(context.Context, string) (domain.RunSummary, error) {
	return domain.RunSummary{}, nil
}
func (emptyRepo) GetByKeys(context.Context, []string) ([]domain.RunSummary, error) { return nil, nil }
func (emptyRepo) List(context.Context, int, int) ([]domain.RunSummary, int, error) {
	return nil, 0, nil
}

func TestDataLoaderMiddlewareAttachesLoaderPerRequest(t *testing.T) {
	var seen []*runloader.RunLoader
	h := DataLoaderMiddleware(emptyRepo{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, RunLoaderFromContext(r.Context()))
	}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/x", nil))
	}
	require.Len(t, seen, 2)
	require.NotNil(t, seen[0])
	require.NotNil(t, seen[1])
	if seen[0] == seen[1] {
		t.Fatalf("expected a fresh loader per request")
	}
	assert.Nil(t, RunLoaderFromContext(context.Background()))
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := LoggingMiddleware(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/boom", nil))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "request", entries[0].Message)
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "/boom", entries[1].ContextMap()["path"])
}
