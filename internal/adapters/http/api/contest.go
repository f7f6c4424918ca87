package api

import (
	"context"
	"net/http"

	"github.com/okian/ratingforces/internal/domain/types"
)

// ContestDependencies defines the interface for contest lookups.
type ContestDependencies interface {
	ContestStandings(ctx context.Context, contestID int) (types.StandingsResponse, error)
	ContestInfo(ctx context.Context, contestID int) (types.Contest, error)
}

// ContestHandler handles contest requests.
type ContestHandler struct {
	deps ContestDependencies
}

// NewContestHandler creates a new contest handler.
func NewContestHandler(deps ContestDependencies) *ContestHandler {
	return &ContestHandler{deps: deps}
}

// HandleGetContest handles GET /api/codeforces/contest/{contestId}.
func (h *ContestHandler) HandleGetContest(w http.ResponseWriter, r *http.Request) {
	id, err := contestID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	contest, err := h.deps.ContestInfo(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap("get contest", err))
		return
	}
	writeJSON(w, http.StatusOK, contest)
}

// HandleGetStandings handles GET /api/codeforces/contest/{contestId}/standings.
func (h *ContestHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	id, err := contestID(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	standings, err := h.deps.ContestStandings(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap("get standings", err))
		return
	}
	writeJSON(w, http.StatusOK, standings)
}
