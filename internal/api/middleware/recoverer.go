package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer converts handler panics into the API's JSON error envelope
// instead of tearing down the connection. http.ErrAbortHandler passes
// through untouched; it is the sanctioned way to abort a response.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				// Same envelope the handlers emit, written by hand to
				// keep this package free of handler imports.
				_, _ = w.Write([]byte(`{"error":"internal_error","message":"An unexpected error occurred"}` + "\n"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
