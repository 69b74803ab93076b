// Package auth guards the mutating HTTP surface with bearer-token checks.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const ctxKeyOperator ctxKey = "passops.operator"

// Operator holds the validated identity of the requester.
type Operator struct {
	Subject string
	Roles   []string
}

// FromContext returns the Operator stored in the request context, or nil.
func FromContext(ctx context.Context) *Operator {
	v := ctx.Value(ctxKeyOperator)
	if v == nil {
		return nil
	}
	if op, ok := v.(*Operator); ok {
		return op
	}
	return nil
}

// Verifier validates HS256 bearer tokens signed with a shared secret and
// places the operator identity in the request context.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Middleware rejects requests without a valid bearer token.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			http.Error(w, "bearer token required", http.StatusUnauthorized)
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return v.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		op := &Operator{}
		if sub, err := claims.GetSubject(); err == nil {
			op.Subject = sub
		}
		if roles, ok := claims["roles"].([]interface{}); ok {
			for _, role := range roles {
				if s, ok := role.(string); ok {
					op.Roles = append(op.Roles, s)
				}
			}
		}

		ctx := context.WithValue(r.Context(), ctxKeyOperator, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}
