package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tenantCtxKey struct{}

type tenantClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// tokenVerifier validates HS256 bearer tokens issued by the platform.
type tokenVerifier struct {
	secret []byte
}

func newTokenVerifier(secret string) *tokenVerifier {
	return &tokenVerifier{secret: []byte(secret)}
}

func (v *tokenVerifier) issue(tenant string, ttl time.Duration) (string, error) {
	claims := &tenantClaims{
		TenantID: tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *tokenVerifier) tenant(raw string) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}

	token, err := jwt.ParseWithClaims(raw, &tenantClaims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token: %w", err)
	}

	claims, ok := token.Claims.(*tenantClaims)
	if !ok || strings.TrimSpace(claims.TenantID) == "" {
		return "", errors.New("token has no tenant_id claim")
	}
	return claims.TenantID, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func (s *server) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing_tenant", "bearer token required")
			return
		}

		tenant, err := s.tokens.tenant(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing_tenant", err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenant)))
	})
}

func withTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenant)
}

func tenantFrom(r *http.Request) string {
	tenant, _ := r.Context().Value(tenantCtxKey{}).(string)
	return tenant
}
