package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/ratingforces/internal/config"
	"github.com/okian/ratingforces/pkg/logger"
	"github.com/okian/ratingforces/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeCodeforces answers the three API methods the service uses.
func fakeCodeforces() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/contest.standings", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","result":{"contest":{"id":7,"name":"Test Round"},"problems":[],"rows":[
			{"rank":1,"party":{"members":[{"handle":"A"}]}},
			{"rank":2,"party":{"members":[{"handle":"B"}]}}]}}`))
	})
	mux.HandleFunc("/contest.ratingChanges", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","result":[{"handle":"A","oldRating":1600},{"handle":"B","oldRating":1400}]}`))
	})
	mux.HandleFunc("/user.info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","result":[{"handle":"A","rating":1650}]}`))
	})
	return httptest.NewServer(mux)
}

// fakeUnratedCodeforces serves an unrated contest whose profile lookup fails
// because one contestant's account no longer exists.
func fakeUnratedCodeforces() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/contest.standings", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","result":{"contest":{"id":8,"name":"Old Round"},"problems":[],"rows":[
			{"rank":1,"party":{"members":[{"handle":"A"}]}},
			{"rank":2,"party":{"members":[{"handle":"Deleted"}]}}]}}`))
	})
	mux.HandleFunc("/contest.ratingChanges", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"FAILED","comment":"contestId: Rating changes are unavailable for this contest"}`))
	})
	mux.HandleFunc("/user.info", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"FAILED","comment":"handles: User with handle Deleted not found"}`))
	})
	return httptest.NewServer(mux)
}

func testConfig(baseURL string) *config.Config {
	cfg := config.New()
	cfg.Addr = "127.0.0.1:0"
	cfg.UpstreamBaseURL = baseURL
	cfg.UpstreamRPS = 0
	cfg.BatchDelayMS = 0
	return cfg
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the application wired to a fake Codeforces API", t, func() {
		upstream := fakeCodeforces()
		defer upstream.Close()

		ctx := context.Background()
		cfg := testConfig(upstream.URL)
		svc, results := newService(cfg, logger.Get())
		defer results.Close()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		h := newHandler(ctx, cfg, svc, logger.Get())
		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		convey.Convey("Then the landing page and docs are served", func() {
			convey.So(get("/").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then a performance is computed end to end", func() {
			w := get("/api/codeforces/contest/7/performance/B")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldStartWith, `{"performance":`)
		})

		convey.Convey("Then a batch request returns null for unknown handles", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/codeforces/contest/7/performances", strings.NewReader(`{"handles":["A","Z"]}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `{"handle":"Z","performance":null}`)
		})

		convey.Convey("Then user profiles pass through", func() {
			w := get("/api/codeforces/user/A")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"rating":1650`)
		})

		convey.Convey("Then stats report a started service", func() {
			w := get("/stats")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"started":true`)
		})
	})
}

func TestFallbackLookupFailure(t *testing.T) {
	convey.Convey("Given an unrated contest with a deleted account", t, func() {
		upstream := fakeUnratedCodeforces()
		defer upstream.Close()

		ctx := context.Background()
		cfg := testConfig(upstream.URL)
		svc, results := newService(cfg, logger.Get())
		defer results.Close()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		h := newHandler(ctx, cfg, svc, logger.Get())
		do := func(method, path, body string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
			return w
		}

		convey.Convey("Then a listed contestant gets 502, not 404", func() {
			w := do(http.MethodGet, "/api/codeforces/contest/8/performance/A", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadGateway)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"upstream_unavailable"`)
		})

		convey.Convey("Then the batch request fails the same way", func() {
			w := do(http.MethodPost, "/api/codeforces/contest/8/performances", `{"handles":["A"]}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadGateway)
		})

		convey.Convey("Then a direct profile lookup still reports the missing user", func() {
			w := do(http.MethodGet, "/api/codeforces/user/Deleted", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a cancelled context", t, func() {
		upstream := fakeCodeforces()
		defer upstream.Close()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx, testConfig(upstream.URL)) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		convey.Convey("Then run shuts down cleanly", func() {
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(5 * time.Second):
				convey.So("run did not return", convey.ShouldBeEmpty)
			}
		})
	})

	convey.Convey("Given an address that cannot be bound", t, func() {
		cfg := testConfig("http://127.0.0.1:1")
		cfg.Addr = "256.0.0.1:99999"

		convey.Convey("Then run returns the listener error", func() {
			convey.So(run(context.Background(), cfg), convey.ShouldNotBeNil)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("When system metrics are refreshed", t, func() {
		updateSystemMetrics()

		convey.Convey("Then the goroutine gauge is populated", func() {
			n, err := testutil.GatherAndCount(metrics.GetRegistry(), "ratingforces_engine_system_goroutine_count")
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 1)
		})
	})
}
