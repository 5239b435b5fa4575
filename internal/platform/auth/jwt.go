// Package auth guards operator-facing endpoints with HS256 bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

type ctxKeyOperator struct{}

// OperatorFromContext returns the token subject injected by RequireOperator.
func OperatorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyOperator{}).(string)
	return v, ok
}

// WithOperator injects an operator id into context. Useful for testing.
func WithOperator(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyOperator{}, id)
}

type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

type JWTVerifier struct {
	Secret []byte
}

// Enabled reports whether a secret is configured.
func (v JWTVerifier) Enabled() bool {
	return len(v.Secret) > 0
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireOperator validates the Bearer token and injects the subject into context.
// A verifier without a secret lets every request through.
func RequireOperator(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !verifier.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if authz == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
			if err != nil || strings.TrimSpace(claims.Subject) == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyOperator{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
