package export

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/campusops/enrollsync/internal/auth"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler serves batch review reports for download.
type Handler struct {
	service *Service
}

// NewHandler wraps the report service with an HTTP endpoint.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ServeHTTP handles GET /batches/{batchID}/report?format=csv|xlsx.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid batch id: %v", err), http.StatusBadRequest)
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="batch-%s.csv"`, batchID))
		err = h.service.WriteCSV(r.Context(), identity.OrganizationID, batchID, w)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="batch-%s.xlsx"`, batchID))
		err = h.service.WriteXLSX(r.Context(), identity.OrganizationID, batchID, w)
	default:
		http.Error(w, fmt.Sprintf("unsupported report format %q", format), http.StatusBadRequest)
		return
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
