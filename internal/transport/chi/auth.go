package chi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type tenantKey struct{}

// TenantFromContext returns the authenticated tenant, if any.
func TenantFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(tenantKey{}).(int64)
	return id, ok
}

// ContextWithTenant attaches an authenticated tenant to ctx.
func ContextWithTenant(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, tenantKey{}, ownerID)
}

// TenantMiddleware resolves the tenant from an HS256 bearer token whose "sub"
// claim is the numeric owner id. Requests without a token pass through as
// anonymous; a present but invalid token is rejected.
// An empty secret disables token parsing: every request is anonymous.
func TenantMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		if len(key) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			ownerID, err := parseTenant(auth[len(bearerPrefix):], key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithTenant(r.Context(), ownerID)))
		})
	}
}

func parseTenant(tokenString string, key []byte) (int64, error) {
	token, err := jwt.Parse(tokenString, func(_ *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("subject claim: %w", err)
	}
	ownerID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, errors.New("subject is not a positive owner id")
	}
	return ownerID, nil
}

// RequireTenant rejects anonymous requests.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := TenantFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// APIKeyMiddleware guards service routes with the X-API-Key header.
// If apiKeys is empty, the check is disabled (pass-through).
func APIKeyMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-API-Key"))
			if len(got) == 0 {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing api key")
				return
			}
			for _, k := range validKeys {
				if subtle.ConstantTimeCompare(got, k) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
		})
	}
}
