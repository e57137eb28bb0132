package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/campusops/enrollsync/internal/auth"
	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/go-chi/chi/v5"
	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// maxUploadBytes caps roster uploads. Parsing is synchronous within the
// request, so upload size is implicitly bounded by the request timeout too.
const maxUploadBytes = 32 << 20

// Handler exposes the import engine over HTTP.
type Handler struct {
	service  *Service
	validate *playgroundvalidator.Validate
}

// NewHandler wires the engine's HTTP surface.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:  service,
		validate: playgroundvalidator.New(playgroundvalidator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the batch endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/batches", h.createBatch)
	r.Get("/batches", h.listBatches)
	r.Get("/batches/{batchID}", h.getBatch)
	r.Get("/batches/{batchID}/rows", h.listRows)
	r.Get("/batches/{batchID}/audit", h.listAudit)
	r.Post("/batches/{batchID}/apply", h.applyBatch)
	r.Post("/batches/{batchID}/rows/{rowID}/exclude", h.excludeRow)
	r.Post("/batches/{batchID}/rows/{rowID}/resolve", h.resolveRow)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}
	if len(payload) > maxUploadBytes {
		http.Error(w, "file exceeds upload limit", http.StatusRequestEntityTooLarge)
		return
	}

	batch, err := h.service.CreateBatch(r.Context(), CreateBatchRequest{
		OrganizationID: identity.OrganizationID,
		FileName:       header.Filename,
		Payload:        payload,
		CreatedBy:      identity.Subject,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, batch)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var statuses []domain.BatchStatus
	for _, value := range strings.Split(r.URL.Query().Get("status"), ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		status := domain.BatchStatus(strings.ToUpper(value))
		if !status.Valid() {
			http.Error(w, fmt.Sprintf("unknown batch status %q", value), http.StatusBadRequest)
			return
		}
		statuses = append(statuses, status)
	}

	limit, offset := pagination(r)
	batches, total, err := h.service.ListBatches(r.Context(), identity.OrganizationID, statuses, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batches": batches,
		"total":   total,
	})
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	identity, batchID, ok := h.batchScope(w, r)
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(r.Context(), identity.OrganizationID, batchID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) listRows(w http.ResponseWriter, r *http.Request) {
	identity, batchID, ok := h.batchScope(w, r)
	if !ok {
		return
	}

	var status *domain.RowStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		candidate := domain.RowStatus(strings.ToUpper(raw))
		if !candidate.Valid() {
			http.Error(w, fmt.Sprintf("unknown row status %q", raw), http.StatusBadRequest)
			return
		}
		status = &candidate
	}

	limit, offset := pagination(r)
	rows, total, err := h.service.ListRows(r.Context(), identity.OrganizationID, batchID, status, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"total": total,
	})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	identity, batchID, ok := h.batchScope(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListAuditEvents(r.Context(), identity.OrganizationID, batchID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) applyBatch(w http.ResponseWriter, r *http.Request) {
	identity, batchID, ok := h.batchScope(w, r)
	if !ok {
		return
	}

	result, err := h.service.ApplyBatch(r.Context(), identity.OrganizationID, batchID, identity.Subject)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) excludeRow(w http.ResponseWriter, r *http.Request) {
	identity, batchID, rowID, ok := h.rowScope(w, r)
	if !ok {
		return
	}

	batch, err := h.service.ExcludeRow(r.Context(), identity.OrganizationID, batchID, rowID, identity.Subject)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

type resolveRequest struct {
	Kind     string  `json:"kind" validate:"required,oneof=linked new"`
	TargetID *string `json:"target_id" validate:"required_if=Kind linked,omitempty,uuid"`
}

func (h *Handler) resolveRow(w http.ResponseWriter, r *http.Request) {
	identity, batchID, rowID, ok := h.rowScope(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("invalid resolve request: %v", err), http.StatusBadRequest)
		return
	}

	decision := Decision{Kind: domain.ResolutionKind(req.Kind)}
	if req.TargetID != nil {
		targetID, err := uuid.Parse(*req.TargetID)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid target id: %v", err), http.StatusBadRequest)
			return
		}
		decision.TargetID = &targetID
	}

	batch, err := h.service.ResolveRow(r.Context(), identity.OrganizationID, batchID, rowID, decision, identity.Subject)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) batchScope(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return auth.Identity{}, uuid.Nil, false
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid batch id: %v", err), http.StatusBadRequest)
		return auth.Identity{}, uuid.Nil, false
	}

	return identity, batchID, true
}

func (h *Handler) rowScope(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, uuid.UUID, bool) {
	identity, batchID, ok := h.batchScope(w, r)
	if !ok {
		return auth.Identity{}, uuid.Nil, uuid.Nil, false
	}

	rowID, err := uuid.Parse(chi.URLParam(r, "rowID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid row id: %v", err), http.StatusBadRequest)
		return auth.Identity{}, uuid.Nil, uuid.Nil, false
	}

	return identity, batchID, rowID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrStateConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
