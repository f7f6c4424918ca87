// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	"github.com/okian/ratingforces/internal/domain/types"
	"github.com/okian/ratingforces/pkg/logger"
)

// BasePath prefixes every contest-data route.
const BasePath = "/api/codeforces"

// DefaultMaxHandles caps the handles accepted by one batch request.
const DefaultMaxHandles = 10000

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ContestStandings(ctx context.Context, contestID int) (types.StandingsResponse, error)
	ContestInfo(ctx context.Context, contestID int) (types.Contest, error)
	UserInfo(ctx context.Context, handle string) (types.UserInfo, error)
	CalculatePerformance(ctx context.Context, contestID int, handle string) (int, error)
	CalculateMultiplePerformances(ctx context.Context, contestID int, handles []string) ([]types.PerformanceResult, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxHandles caps the handles accepted by POST .../performances.
func WithMaxHandles(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxHandles = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	contestHandler     *ContestHandler
	userHandler        *UserHandler
	performanceHandler *PerformanceHandler

	maxHandles int
	logger     logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxHandles: DefaultMaxHandles,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.contestHandler = NewContestHandler(deps)
	s.userHandler = NewUserHandler(deps)
	s.performanceHandler = NewPerformanceHandler(deps, validator.New(), s.maxHandles)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET "+BasePath+"/user/{handle}", MetricsMiddleware(s.userHandler.HandleGetUser, "user"))
	mux.HandleFunc("GET "+BasePath+"/contest/{contestId}", MetricsMiddleware(s.contestHandler.HandleGetContest, "contest"))
	mux.HandleFunc("GET "+BasePath+"/contest/{contestId}/standings", MetricsMiddleware(s.contestHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("GET "+BasePath+"/contest/{contestId}/performance/{handle}", MetricsMiddleware(s.performanceHandler.HandleGetPerformance, "performance"))
	mux.HandleFunc("POST "+BasePath+"/contest/{contestId}/performances", MetricsMiddleware(s.performanceHandler.HandlePostPerformances, "performances"))
}

// Handler wraps mux with request id, logging and panic recovery.
func (s *Server) Handler(mux http.Handler) http.Handler {
	return RequestMiddleware(mux, s.logger)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks the status for err and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// contestID parses the {contestId} path value as a positive integer.
func contestID(r *http.Request) (int, error) {
	raw := r.PathValue("contestId")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, NewKind("parse contest id", ErrInvalidContestID, "contestId must be a positive integer, got "+strconv.Quote(raw))
	}
	return id, nil
}
