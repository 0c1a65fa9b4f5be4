package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"wisebox-backend/internal/auth"
	"wisebox-backend/internal/models"
	"wisebox-backend/internal/transport"
)

// AccessCookie carries the access token for browser clients.
const AccessCookie = "wisebox_access"

type principalKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// RequireAuth accepts an access token from the Authorization header
// ("Bearer <token>") or from the access cookie.
func RequireAuth(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
				return
			}

			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(AccessCookie); err == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			claims, err := manager.ParseKind(token, auth.TokenAccess)
			if err != nil {
				transport.WriteError(w, http.StatusUnauthorized, "invalid or expired token", nil)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{UserID: claims.Subject, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
		})
	}
}

// ErrAccountGone is what an AccountLookup returns for a deleted account.
var ErrAccountGone = errors.New("account not found")

// AccountLookup reads the stored role and status of a user.
type AccountLookup func(ctx context.Context, userID string) (role, status string, err error)

// RequireActiveRole re-reads the caller's account on every request, so a
// suspension or demotion applies before the access token runs out. It must
// run after RequireAuth.
func RequireActiveRole(lookup AccountLookup, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			role, status, err := lookup(r.Context(), p.UserID)
			if err != nil {
				if errors.Is(err, ErrAccountGone) {
					transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
					return
				}
				transport.WriteError(w, http.StatusInternalServerError, "account lookup failed", nil)
				return
			}
			if status != models.UserStatusActive {
				transport.WriteCodedError(w, http.StatusForbidden, "account_inactive", "account is not active", nil)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					p.Role = role
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
			}
			transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
