package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hszk-dev/scenedex/internal/domain/model"
	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

// Identity headers set by the auth proxy in front of the API. Requests
// reaching the API without them were not authenticated.
const (
	HeaderAuthSubject  = "X-Auth-Subject"
	HeaderAuthEmail    = "X-Auth-Email"
	HeaderAuthVerified = "X-Auth-Email-Verified"
)

// Auth resolves the proxy-verified identity headers to a local user,
// creating the user on first sight. The resolved user lands in the
// request context for handlers.
func Auth(users repository.UserRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := r.Header.Get(HeaderAuthSubject)
			if subject == "" {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			user, err := syncUser(r.Context(), users, subject, r.Header.Get(HeaderAuthEmail), r.Header.Get(HeaderAuthVerified) == "true")
			if err != nil {
				logger.Error("failed to resolve user",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("subject", subject),
					slog.Any("error", err),
				)
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// syncUser implements lazy user creation: look up by the provider
// subject, insert on first sight, and re-fetch if a concurrent request
// inserted first.
func syncUser(ctx context.Context, users repository.UserRepository, subject, email string, verified bool) (*model.User, error) {
	user, err := users.GetByExternalAuthID(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	user, err = model.NewUser(subject, email, verified)
	if err != nil {
		return nil, err
	}

	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return users.GetByExternalAuthID(ctx, subject)
		}
		return nil, err
	}
	return user, nil
}

// GetUser retrieves the authenticated user from context. The boolean is
// false on routes outside the Auth middleware.
func GetUser(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(UserKey).(*model.User)
	return user, ok
}
