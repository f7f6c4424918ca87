// Package codeforces is an HTTP client for the public Codeforces API.
package codeforces

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/ratingforces/internal/domain/types"
	"github.com/okian/ratingforces/pkg/logger"
	"github.com/okian/ratingforces/pkg/metrics"
)

// Default client configuration.
const (
	DefaultBaseURL        = "https://codeforces.com/api"
	DefaultTimeout        = 10 * time.Second
	DefaultRPS            = 5
	DefaultBurst          = 1
	DefaultBreakerTimeout = 30 * time.Second

	maxBodyBytes      = 256 << 20
	maxErrorBodyBytes = 4 << 10
	statusOK          = "OK"
)

// API method names.
const (
	methodStandings     = "contest.standings"
	methodRatingChanges = "contest.ratingChanges"
	methodUserInfo      = "user.info"
)

// envelope is the wrapper every API response is delivered in.
type envelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Client talks to the Codeforces API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	timeout        time.Duration
	rps            float64
	burst          int
	breakerTimeout time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     logger.Logger
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:        DefaultBaseURL,
		timeout:        DefaultTimeout,
		rps:            DefaultRPS,
		burst:          DefaultBurst,
		breakerTimeout: DefaultBreakerTimeout,
		httpClient:     &http.Client{},
		logger:         logger.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.httpClient.Timeout = c.timeout
	if c.rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.rps), c.burst)
	}
	c.breaker = newBreaker(c.breakerTimeout, c.logger)

	return c
}

// ContestStandings returns the official standings of a contest.
func (c *Client) ContestStandings(ctx context.Context, contestID int) (types.StandingsResponse, error) {
	var out types.StandingsResponse
	params := url.Values{
		"contestId":      {strconv.Itoa(contestID)},
		"showUnofficial": {"false"},
	}
	if err := c.call(ctx, methodStandings, params, &out); err != nil {
		return types.StandingsResponse{}, err
	}
	return out, nil
}

// ContestInfo returns contest metadata by requesting a single standings row.
func (c *Client) ContestInfo(ctx context.Context, contestID int) (types.Contest, error) {
	var out types.StandingsResponse
	params := url.Values{
		"contestId": {strconv.Itoa(contestID)},
		"from":      {"1"},
		"count":     {"1"},
	}
	if err := c.call(ctx, methodStandings, params, &out); err != nil {
		return types.Contest{}, err
	}
	return out.Contest, nil
}

// RatingChanges returns the rating changes a contest caused. Unrated
// contests answer with an APIError.
func (c *Client) RatingChanges(ctx context.Context, contestID int) ([]types.RatingChange, error) {
	var out []types.RatingChange
	params := url.Values{"contestId": {strconv.Itoa(contestID)}}
	if err := c.call(ctx, methodRatingChanges, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserInfos returns the profiles of handles in one request.
func (c *Client) UserInfos(ctx context.Context, handles []string) ([]types.UserInfo, error) {
	if len(handles) == 0 {
		return []types.UserInfo{}, nil
	}
	var out []types.UserInfo
	params := url.Values{"handles": {strings.Join(handles, ";")}}
	if err := c.call(ctx, methodUserInfo, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserInfo returns a single profile.
func (c *Client) UserInfo(ctx context.Context, handle string) (types.UserInfo, error) {
	users, err := c.UserInfos(ctx, []string{handle})
	if err != nil {
		return types.UserInfo{}, err
	}
	if len(users) == 0 {
		return types.UserInfo{}, fmt.Errorf("%w: %s %s: %w", types.ErrUpstreamUnavailable, methodUserInfo, handle, ErrEmptyResult)
	}
	return users[0], nil
}

// call runs one API method through the limiter and breaker and decodes the
// envelope result into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.RecordUpstreamRequest(method, "cancelled")
			return fmt.Errorf("%w: %s: rate limiter: %w", types.ErrUpstreamUnavailable, method, err)
		}
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, params)
	})
	metrics.RecordUpstreamLatency(method, float64(time.Since(start).Milliseconds()))

	if err != nil {
		outcome := "error"
		switch {
		case isRejected(err):
			outcome = "rejected"
		case isAPIError(err):
			outcome = "failed"
		}
		metrics.RecordUpstreamRequest(method, outcome)
		c.logger.Debug(ctx, "upstream call failed",
			logger.String("method", method),
			logger.String("outcome", outcome),
			logger.Error(err))

		if isRejected(err) {
			return fmt.Errorf("%w: %s: %w", types.ErrUpstreamUnavailable, method, err)
		}
		return err
	}

	if err := json.Unmarshal(result, out); err != nil {
		metrics.RecordUpstreamRequest(method, "error")
		return fmt.Errorf("%w: %s: decode result: %w", types.ErrUpstreamUnavailable, method, err)
	}
	metrics.RecordUpstreamRequest(method, "ok")
	return nil
}

// do performs the HTTP exchange and returns the raw envelope result.
func (c *Client) do(ctx context.Context, method string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + "/" + method + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: build request: %w", types.ErrUpstreamUnavailable, method, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrUpstreamUnavailable, method, err)
	}
	defer resp.Body.Close()

	limit := int64(maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		limit = maxErrorBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", types.ErrUpstreamUnavailable, method, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Status == "" {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Method: method, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		if err == nil {
			err = errors.New("missing status")
		}
		return nil, fmt.Errorf("%w: %s: decode envelope: %w", types.ErrUpstreamUnavailable, method, err)
	}

	if env.Status != statusOK {
		return nil, &APIError{Method: method, Comment: env.Comment}
	}
	return env.Result, nil
}

func isAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
