package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/models"
)

type principalKey struct{}

// PrincipalResolver maps a bearer token to the principal it authenticates.
type PrincipalResolver interface {
	Principal(ctx context.Context, accessToken string) (models.Principal, error)
}

// WithPrincipal stores a principal on the context. Exposed for handler tests.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the resolved principal, or Anonymous when the
// request carried no credentials.
func PrincipalFromContext(ctx context.Context) models.Principal {
	if p, ok := ctx.Value(principalKey{}).(models.Principal); ok {
		return p
	}
	return models.Anonymous
}

// Authenticate resolves the Authorization header into a principal for
// downstream handlers. Requests without credentials proceed as anonymous;
// requests with a stale or unknown token are rejected outright so clients
// learn to refresh instead of silently losing their identity.
func Authenticate(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			principal, err := resolver.Principal(ctx, token)
			if err != nil {
				logging.FromContext(ctx).Warn("rejected stale credentials", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid or expired access token"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
