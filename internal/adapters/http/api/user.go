package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/ratingforces/internal/domain/types"
)

// UserDependencies defines the interface for user lookups.
type UserDependencies interface {
	UserInfo(ctx context.Context, handle string) (types.UserInfo, error)
}

// UserHandler handles user requests.
type UserHandler struct {
	deps UserDependencies
}

// NewUserHandler creates a new user handler.
func NewUserHandler(deps UserDependencies) *UserHandler {
	return &UserHandler{deps: deps}
}

// HandleGetUser handles GET /api/codeforces/user/{handle}.
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimSpace(r.PathValue("handle"))
	if handle == "" {
		writeFailure(w, NewKind("get user", ErrBadRequest, "handle is required"))
		return
	}
	user, err := h.deps.UserInfo(r.Context(), handle)
	if err != nil {
		writeFailure(w, Wrap("get user", err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
