package perfcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ratingforces/internal/domain/types"
	"github.com/okian/ratingforces/pkg/logger"
)

func init() {
	if err := logger.InitWithOptions(logger.Options{Writer: os.Stderr}); err != nil {
		panic(err)
	}
}

func intp(v int) *int { return &v }

// fakeService serves the subset of the API the check uses. perf maps a
// handle to its performance; handles absent from perf come back null.
type fakeService struct {
	rows     []types.ContestStanding
	perf     map[string]int
	failPost bool
	posts    atomic.Int64
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/codeforces/contest/{id}/standings", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(types.StandingsResponse{Contest: types.Contest{ID: 1}, Rows: f.rows})
	})
	mux.HandleFunc("POST /api/codeforces/contest/{id}/performances", func(w http.ResponseWriter, r *http.Request) {
		f.posts.Add(1)
		if f.failPost {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream_unavailable","message":"down"}`))
			return
		}
		var req performancesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var resp performancesResponse
		for _, h := range req.Handles {
			res := types.PerformanceResult{Handle: h}
			if p, ok := f.perf[h]; ok {
				res.Performance = intp(p)
			}
			resp.Performances = append(resp.Performances, res)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func standingRow(rank int, handle string) types.ContestStanding {
	return types.ContestStanding{Rank: rank, Party: types.Party{Members: []types.Member{{Handle: handle}}}}
}

func consistentService() *fakeService {
	return &fakeService{
		rows: []types.ContestStanding{
			standingRow(1, "a"), standingRow(2, "b"), standingRow(2, "c"), standingRow(4, "d"), standingRow(5, "e"),
		},
		perf: map[string]int{"a": 2600, "b": 2100, "c": 2100, "d": 1800, "e": 1500},
	}
}

func checkConfig(url string) *Config {
	return &Config{BaseURL: url, ContestID: 1, ChunkSize: 2, Workers: 3, Timeout: time.Second}
}

func TestVerifyEntries(t *testing.T) {
	Convey("Given entries sorted by rank", t, func() {
		Convey("Non-increasing performances pass", func() {
			missing, violations := verifyEntries([]Entry{
				{Rank: 1, Handle: "a", Performance: intp(2000)},
				{Rank: 2, Handle: "b", Performance: intp(1900)},
				{Rank: 2, Handle: "c", Performance: intp(1900)},
				{Rank: 4, Handle: "d", Performance: intp(1900)},
			})
			So(missing, ShouldBeEmpty)
			So(violations, ShouldBeEmpty)
		})

		Convey("A worse rank with a higher performance is flagged", func() {
			_, violations := verifyEntries([]Entry{
				{Rank: 1, Handle: "a", Performance: intp(1800)},
				{Rank: 2, Handle: "b", Performance: intp(1900)},
			})
			So(violations, ShouldHaveLength, 1)
			So(violations[0].Better.Handle, ShouldEqual, "a")
			So(violations[0].Worse.Handle, ShouldEqual, "b")
		})

		Convey("Tied ranks with different performances are flagged", func() {
			_, violations := verifyEntries([]Entry{
				{Rank: 3, Handle: "a", Performance: intp(1800)},
				{Rank: 3, Handle: "b", Performance: intp(1700)},
			})
			So(violations, ShouldHaveLength, 1)
		})

		Convey("Entries without a performance are missing and skipped", func() {
			missing, violations := verifyEntries([]Entry{
				{Rank: 1, Handle: "a", Performance: intp(2000)},
				{Rank: 2, Handle: "ghost"},
				{Rank: 3, Handle: "c", Performance: intp(1500)},
			})
			So(missing, ShouldResemble, []string{"ghost"})
			So(violations, ShouldBeEmpty)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()

		Convey("A consistent contest passes and is chunked", func() {
			svc := consistentService()
			srv := httptest.NewServer(svc.handler())
			defer srv.Close()

			report, err := Run(ctx, checkConfig(srv.URL))
			So(err, ShouldBeNil)
			So(report.Entries, ShouldHaveLength, 5)
			So(report.Stats.HandlesChecked, ShouldEqual, 5)
			So(report.Stats.RequestsSent, ShouldEqual, 3)
			So(svc.posts.Load(), ShouldEqual, 3)
			So(*report.Entries[0].Performance, ShouldEqual, 2600)
		})

		Convey("Top limits the rows checked", func() {
			svc := consistentService()
			srv := httptest.NewServer(svc.handler())
			defer srv.Close()

			cfg := checkConfig(srv.URL)
			cfg.Top = 2
			report, err := Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(report.Entries, ShouldHaveLength, 2)
			So(report.Stats.RowsFetched, ShouldEqual, 5)
		})

		Convey("An inversion is reported as inconsistent", func() {
			svc := consistentService()
			svc.perf["e"] = 3000
			srv := httptest.NewServer(svc.handler())
			defer srv.Close()

			report, err := Run(ctx, checkConfig(srv.URL))
			So(errors.Is(err, ErrInconsistent), ShouldBeTrue)
			So(report.Violations, ShouldHaveLength, 1)
			So(report.Violations[0].Worse.Handle, ShouldEqual, "e")
		})

		Convey("A null performance is reported as missing", func() {
			svc := consistentService()
			delete(svc.perf, "d")
			srv := httptest.NewServer(svc.handler())
			defer srv.Close()

			report, err := Run(ctx, checkConfig(srv.URL))
			So(errors.Is(err, ErrInconsistent), ShouldBeTrue)
			So(report.Missing, ShouldResemble, []string{"d"})
		})

		Convey("Failed batch requests fail the run", func() {
			svc := consistentService()
			svc.failPost = true
			srv := httptest.NewServer(svc.handler())
			defer srv.Close()

			_, err := Run(ctx, checkConfig(srv.URL))
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "upstream_unavailable")
		})

		Convey("An unreachable service fails the health check", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()

			_, err := Run(ctx, checkConfig(url))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})

		Convey("A non-positive contest id is rejected", func() {
			cfg := checkConfig("http://127.0.0.1:0")
			cfg.ContestID = 0
			_, err := Run(ctx, cfg)
			So(err, ShouldNotBeNil)
		})

		Convey("The report is written when an output file is set", func() {
			svc := consistentService()
			srv := httptest.NewServer(svc.handler())
			defer srv.Close()

			cfg := checkConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "reports", "1.json")
			_, err := Run(ctx, cfg)
			So(err, ShouldBeNil)

			data, err := os.ReadFile(cfg.OutputFile)
			So(err, ShouldBeNil)
			var saved Report
			So(json.Unmarshal(data, &saved), ShouldBeNil)
			So(saved.ContestID, ShouldEqual, 1)
			So(saved.Entries, ShouldHaveLength, 5)
		})
	})
}
