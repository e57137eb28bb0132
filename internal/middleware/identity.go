package middleware

import (
	"net/http"
	"strings"

	"github.com/campusops/enrollsync/internal/auth"

	"github.com/google/uuid"
)

// Identity trusts the upstream gateway's tenant headers and places the
// caller identity on the request context. Requests without a valid
// organization id are rejected before reaching any handler.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, err := uuid.Parse(strings.TrimSpace(r.Header.Get("X-Organization-ID")))
		if err != nil || orgID == uuid.Nil {
			http.Error(w, "X-Organization-ID header is required", http.StatusUnauthorized)
			return
		}

		identity := auth.Identity{
			OrganizationID: orgID,
			Subject:        strings.TrimSpace(r.Header.Get("X-Subject")),
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}
