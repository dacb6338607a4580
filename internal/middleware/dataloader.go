package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/enrollgate/internal/repository"
	"github.com/rpattn/enrollgate/internal/runloader"
)

type ctxKey string

const runLoaderKey ctxKey = "runLoader"

// DataLoaderMiddleware attaches a fresh run loader to every request context.
func DataLoaderMiddleware(repo repository.RunRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := runloader.NewRunLoader(repo)
			ctx := context.WithValue(r.Context(), runLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RunLoaderFromContext retrieves the loader, or nil outside the middleware.
func RunLoaderFromContext(ctx context.Context) *runloader.RunLoader {
	if l, ok := ctx.Value(runLoaderKey).(*runloader.RunLoader); ok {
		return l
	}
	return nil
}
