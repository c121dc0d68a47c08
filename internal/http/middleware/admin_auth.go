package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const staffClaimsKey contextKey = "staffClaims"

// StaffClaims are the JWT claims carried by library staff tokens.
type StaffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// StaffJWT enforces an HMAC-signed JWT whose role is one of allowedRoles.
// With no roles given, any valid token is accepted.
func StaffJWT(secret string, allowedRoles ...string) func(http.Handler) http.Handler {
	roles := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		roles[strings.ToLower(role)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "admin auth disabled", http.StatusUnauthorized)
				return
			}
			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenString == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			claims := &StaffClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if len(roles) > 0 {
				if _, allowed := roles[strings.ToLower(claims.Role)]; !allowed {
					http.Error(w, "insufficient role", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithStaffClaims(r.Context(), claims)))
		})
	}
}

// WithStaffClaims returns a copy of ctx carrying claims.
func WithStaffClaims(ctx context.Context, claims *StaffClaims) context.Context {
	return context.WithValue(ctx, staffClaimsKey, claims)
}

// StaffClaimsFromContext returns staff JWT claims if present.
func StaffClaimsFromContext(ctx context.Context) (*StaffClaims, bool) {
	claims, ok := ctx.Value(staffClaimsKey).(*StaffClaims)
	return claims, ok
}
