package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/service"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/validation"
)

// IRRHandler handles IRR-related HTTP requests
type IRRHandler struct {
	irrService *service.IRRService
}

// NewIRRHandler creates a new IRRHandler
func NewIRRHandler(irrService *service.IRRService) *IRRHandler {
	return &IRRHandler{
		irrService: irrService,
	}
}

// IRRResponse represents a computed (or pending) IRR result. Value is null
// both while computing and when the IRR is undefined; the Undefined flag
// distinguishes "mathematically undefined" from "not available".
type IRRResponse struct {
	EntityID    string  `json:"entityId"`
	Level       string  `json:"level"`
	AsOfDate    string  `json:"asOfDate"`
	Value       *string `json:"value"`
	Undefined   bool    `json:"undefined"`
	Status      string  `json:"status"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	ComputedAt  string  `json:"computedAt,omitempty"`
}

func toIRRResponse(record model.IRRRecord) IRRResponse {
	resp := IRRResponse{
		EntityID:  record.EntityID,
		Level:     record.Level.String(),
		AsOfDate:  record.AsOfDate.Format("2006-01-02"),
		Undefined: record.Undefined,
		Status:    string(record.Status),
	}
	if record.Status != model.StatusComputing && !record.Undefined && record.Status != model.StatusFailed {
		v := record.Value.String()
		resp.Value = &v
	}
	if !record.ComputedAt.IsZero() {
		resp.ComputedAt = record.ComputedAt.UTC().Format(time.RFC3339)
	}
	resp.Fingerprint = record.InputFingerprint
	return resp
}

// entityKey builds the cache key from the validated path parameters.
func entityKey(r *http.Request) model.EntityKey {
	level, _ := model.ParseLevel(chi.URLParam(r, "level"))
	return model.EntityKey{EntityID: chi.URLParam(r, "id"), Level: level}
}

// GetIRR handles GET /api/irr/{level}/{id}?as_of=YYYY-MM-DD
//
// Returns 200 with the cached or freshly computed result, or 202 with
// status "computing" when the computation outlasts the wait window; callers
// poll rather than block. A failed entry is a 200 with status "failed" and a
// null value: the entity is visible with its calculation unavailable, never
// silently omitted.
func (h *IRRHandler) GetIRR(w http.ResponseWriter, r *http.Request) {
	asOf, err := validation.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	record, err := h.irrService.GetIRR(r.Context(), entityKey(r), asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if record.Status == model.StatusComputing {
		status = http.StatusAccepted
	}
	respondJSON(w, status, toIRRResponse(record))
}

// GetOwnerIRR handles GET /api/irr/{level}/{id}/owner/{ownerId}
//
// Returns the owner-weighted IRR: constituent fund flows scaled by the
// owner's validated split percentage. 409 when the fund's splits violate the
// sum invariant.
func (h *IRRHandler) GetOwnerIRR(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerId")
	if err := validation.ValidateUUID(ownerID); err != nil {
		respondServiceError(w, err)
		return
	}

	asOf, err := validation.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	record, err := h.irrService.GetOwnerIRR(r.Context(), entityKey(r), ownerID, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toIRRResponse(record))
}

// GetHistory handles GET /api/irr/{level}/{id}/history
//
// Returns the append-only audit trail for the entity, newest first: every
// superseded result with its fingerprint and computed-at timestamp.
func (h *IRRHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.irrService.GetHistory(entityKey(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	responses := make([]IRRResponse, len(records))
	for i, record := range records {
		responses[i] = toIRRResponse(record)
	}
	respondJSON(w, http.StatusOK, responses)
}

// InvalidateResponse reports which cache keys a mutation notification touched.
type InvalidateResponse struct {
	Source     string   `json:"source"`
	Dependents []string `json:"dependents"`
}

// Invalidate handles POST /api/irr/{level}/{id}/invalidate
//
// Collaborators (transaction, valuation, and ownership services) call this
// after every mutation that feeds the engine. Marks the entity's key and its
// dependents stale and runs one cascade round.
func (h *IRRHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	asOf, err := validation.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	marker, err := h.irrService.Invalidate(r.Context(), entityKey(r), asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := InvalidateResponse{Source: marker.Source.String()}
	for _, dep := range marker.Dependents {
		resp.Dependents = append(resp.Dependents, dep.String())
	}
	respondJSON(w, http.StatusOK, resp)
}

// ForceRecompute handles POST /api/irr/{level}/{id}/recompute
//
// Administrative override: recomputes the entity's whole subtree bypassing
// fingerprint matching. Guarded by the API-key middleware.
func (h *IRRHandler) ForceRecompute(w http.ResponseWriter, r *http.Request) {
	asOf, err := validation.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	record, err := h.irrService.ForceRecompute(r.Context(), entityKey(r), asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toIRRResponse(record))
}
