package perfcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/okian/ratingforces/internal/domain/types"
	"github.com/okian/ratingforces/pkg/logger"
)

const apiPath = "/api/codeforces/contest/"

// ErrUnexpectedStatus is returned for any non-200 service response.
var ErrUnexpectedStatus = errors.New("unexpected status")

type httpClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(config *Config) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
	}
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *httpClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%w %d from %s: %s: %s", ErrUnexpectedStatus, resp.StatusCode, req.URL.Path, e.Error, e.Message)
		}
		return fmt.Errorf("%w %d from %s", ErrUnexpectedStatus, resp.StatusCode, req.URL.Path)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// fetchStandings loads the contest snapshot through the service.
func fetchStandings(ctx context.Context, client *httpClient, contestID int) (types.StandingsResponse, error) {
	var standings types.StandingsResponse
	err := client.get(ctx, apiPath+strconv.Itoa(contestID)+"/standings", &standings)
	return standings, err
}

// fetchPerformances posts handles in chunks using a worker pool and returns
// the performance of every handle that came back.
func fetchPerformances(ctx context.Context, config *Config, client *httpClient, handles []string, stats *Stats) (map[string]*int, error) {
	size := config.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(handles); start += size {
		end := min(start+size, len(handles))
		chunks = append(chunks, handles[start:end])
	}

	workers := max(config.Workers, 1)
	logger.Get().Info(ctx, "fetching performances",
		logger.Int("handles", len(handles)),
		logger.Int("chunks", len(chunks)),
		logger.Int("workers", workers))

	path := apiPath + strconv.Itoa(config.ContestID) + "/performances"
	results := make(map[string]*int, len(handles))
	var (
		mu       sync.Mutex
		sent     int64
		failed   int64
		firstErr error
	)

	chunkChan := make(chan []string, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range chunkChan {
				if ctx.Err() != nil {
					return
				}
				var resp performancesResponse
				err := client.postJSON(ctx, path, performancesRequest{Handles: chunk}, &resp)
				atomic.AddInt64(&sent, 1)

				mu.Lock()
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if firstErr == nil {
						firstErr = err
					}
					if config.Verbose {
						logger.Get().Warn(ctx, "chunk failed", logger.Int("size", len(chunk)), logger.Error(err))
					}
				} else {
					for _, r := range resp.Performances {
						results[r.Handle] = r.Performance
					}
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(chunkChan)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case chunkChan <- chunk:
			}
		}
	}()
	wg.Wait()

	stats.RequestsSent = int(atomic.LoadInt64(&sent))
	stats.RequestsFailed = int(atomic.LoadInt64(&failed))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, fmt.Errorf("%d of %d requests failed: %w", stats.RequestsFailed, stats.RequestsSent, firstErr)
	}
	return results, nil
}
