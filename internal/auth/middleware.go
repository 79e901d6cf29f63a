package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"bistro-rush/internal/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Verifier validates bearer tokens and resolves them to a user ID.
type Verifier interface {
	VerifyToken(ctx context.Context, rawToken string) (string, error)
}

// OIDCVerifier verifies tokens against the identity provider, with a Redis
// cache in front so a busy client does not hit the provider on every request.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	cache    *RedisTokenCache
	logger   *logger.Logger
}

// NewOIDCVerifier discovers the provider at issuer. cache may be nil, in
// which case every token is verified against the provider.
func NewOIDCVerifier(ctx context.Context, issuer string, cache *RedisTokenCache, log *logger.Logger) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider for %s: %w", issuer, err)
	}

	// SkipClientIDCheck: tokens are issued for the browser client, not us.
	verifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})

	return &OIDCVerifier{
		verifier: verifier,
		cache:    cache,
		logger:   log,
	}, nil
}

func (v *OIDCVerifier) VerifyToken(ctx context.Context, rawToken string) (string, error) {
	if v.cache != nil {
		if userID, ok := v.cache.Lookup(ctx, rawToken); ok {
			return userID, nil
		}
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("parse claims: %w", err)
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("token has no subject")
	}

	if v.cache != nil {
		if err := v.cache.Store(ctx, rawToken, claims.Sub, idToken.Expiry); err != nil {
			v.logger.Warn("AUTH", fmt.Sprintf("token cache store failed: %v", err))
		}
	}

	return claims.Sub, nil
}

// Middleware authenticates every request with the verifier and puts the
// resolved user ID on the request context.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := TokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			userID, err := verifier.VerifyToken(r.Context(), rawToken)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user ID placed by Middleware.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

// WithUserID is used by tests and internal callers to seed a context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
