package middleware

import (
	"net/http"
	"strings"

	"github.com/wolfman30/leadcrm-booking/internal/tenancy"
)

// WorkspaceHeader identifies the tenant on public capture routes.
const WorkspaceHeader = "X-Workspace-Id"

// RequireWorkspaceHeader copies X-Workspace-Id into the tenancy context.
func RequireWorkspaceHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID := strings.TrimSpace(r.Header.Get(WorkspaceHeader))
		if workspaceID == "" {
			http.Error(w, "missing X-Workspace-Id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithWorkspaceID(r.Context(), workspaceID)))
	})
}
