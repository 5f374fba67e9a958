package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/leadcrm-booking/internal/tenancy"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

// DashboardClaims are issued to dashboard users. Workspaces lists the
// workspaces the user may manage; "*" grants all of them.
type DashboardClaims struct {
	jwt.RegisteredClaims
	Workspaces []string `json:"workspaces,omitempty"`
}

// CanAccess reports whether the token covers workspaceID.
func (c DashboardClaims) CanAccess(workspaceID string) bool {
	return slices.Contains(c.Workspaces, "*") || slices.Contains(c.Workspaces, workspaceID)
}

// AdminJWT enforces an HMAC-signed JWT for dashboard endpoints.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "admin auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := DashboardClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), adminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWorkspaceAccess checks the {workspaceID} route param against the
// token and stores it in the tenancy context. Mount it after AdminJWT.
func RequireWorkspaceAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID := chi.URLParam(r, "workspaceID")
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}
		if workspaceID == "" || !claims.CanAccess(workspaceID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithWorkspaceID(r.Context(), workspaceID)))
	})
}

// AdminClaimsFromContext returns dashboard JWT claims if present.
func AdminClaimsFromContext(ctx context.Context) (DashboardClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(DashboardClaims)
	return claims, ok
}
