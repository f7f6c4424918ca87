package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	"github.com/okian/ratingforces/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// PerformanceDependencies defines the interface for performance queries.
type PerformanceDependencies interface {
	CalculatePerformance(ctx context.Context, contestID int, handle string) (int, error)
	CalculateMultiplePerformances(ctx context.Context, contestID int, handles []string) ([]types.PerformanceResult, error)
}

// performancesRequest mirrors the body of POST .../performances.
type performancesRequest struct {
	Handles []string `json:"handles" validate:"required,min=1,dive,required"`
}

type performanceResponse struct {
	Performance int `json:"performance"`
}

type performancesResponse struct {
	Performances []types.PerformanceResult `json:"performances"`
}

// PerformanceHandler handles performance requests.
type PerformanceHandler struct {
	deps       PerformanceDependencies
	validate   *validator.Validate
	maxHandles int
}

// NewPerformanceHandler creates a new performance handler.
func NewPerformanceHandler(deps PerformanceDependencies, validate *validator.Validate, maxHandles int) *PerformanceHandler {
	if maxHandles <= 0 {
		maxHandles = DefaultMaxHandles
	}
	return &PerformanceHandler{deps: deps, validate: validate, maxHandles: maxHandles}
}

// HandleGetPerformance handles GET /api/codeforces/contest/{contestId}/performance/{handle}.
func (h *PerformanceHandler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	id, err := contestID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	handle := strings.TrimSpace(r.PathValue("handle"))
	if handle == "" {
		writeFailure(w, NewKind("get performance", ErrBadRequest, "handle is required"))
		return
	}

	perf, err := h.deps.CalculatePerformance(r.Context(), id, handle)
	if err != nil {
		writeFailure(w, Wrap("get performance", err))
		return
	}
	writeJSON(w, http.StatusOK, performanceResponse{Performance: perf})
}

// HandlePostPerformances handles POST /api/codeforces/contest/{contestId}/performances.
func (h *PerformanceHandler) HandlePostPerformances(w http.ResponseWriter, r *http.Request) {
	id, err := contestID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	var req performancesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, WrapKind("decode performances request", ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeFailure(w, NewKind("validate performances request", ErrBadRequest, "handles must be a non-empty array of non-empty strings"))
		return
	}
	if err := h.validate.Var(req.Handles, "max="+strconv.Itoa(h.maxHandles)); err != nil {
		writeFailure(w, NewKind("validate performances request", ErrBadRequest, "at most "+strconv.Itoa(h.maxHandles)+" handles are accepted"))
		return
	}

	results, err := h.deps.CalculateMultiplePerformances(r.Context(), id, req.Handles)
	if err != nil {
		writeFailure(w, Wrap("get performances", err))
		return
	}
	writeJSON(w, http.StatusOK, performancesResponse{Performances: results})
}
