package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/ratingforces/internal/adapters/cache"
	"github.com/okian/ratingforces/internal/adapters/codeforces"
	service "github.com/okian/ratingforces/internal/app"
	"github.com/okian/ratingforces/internal/domain/performance"
	"github.com/okian/ratingforces/internal/domain/ratings"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	integrationStandings = `{"status":"OK","result":{
	  "contest":{"id":42,"name":"Div. 2","type":"CF","phase":"FINISHED","durationSeconds":7200},
	  "problems":[],
	  "rows":[
	    {"rank":1,"points":100,"party":{"members":[{"handle":"alice"}]}},
	    {"rank":2,"points":90,"party":{"members":[{"handle":"bob"}]}},
	    {"rank":2,"points":90,"party":{"members":[{"handle":"carol"}]}},
	    {"rank":4,"points":10,"party":{"members":[{"handle":"dave"}]}}
	  ]}}`
	integrationUsers = `{"status":"OK","result":[
	  {"handle":"alice","rating":2100},{"handle":"bob","rating":1800},
	  {"handle":"carol","rating":1700},{"handle":"dave"}]}`
	notRated = `{"status":"FAILED","comment":"contestId: Rating changes are unavailable for this contest"}`
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given the service wired to a Codeforces API double", t, func() {
		var userInfoCalls atomic.Int64
		mux := http.NewServeMux()
		mux.HandleFunc("/contest.standings", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(integrationStandings))
		})
		mux.HandleFunc("/contest.ratingChanges", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(notRated))
		})
		mux.HandleFunc("/user.info", func(w http.ResponseWriter, _ *http.Request) {
			userInfoCalls.Add(1)
			_, _ = w.Write([]byte(integrationUsers))
		})
		srv := httptest.NewServer(mux)
		Reset(srv.Close)

		client := codeforces.New(codeforces.WithBaseURL(srv.URL), codeforces.WithRateLimit(0, 0))
		results := cache.New(cache.WithDefaultTTL(time.Minute))
		Reset(results.Close)

		svc := service.New(client,
			service.WithCache(results),
			service.WithResolver(ratings.NewResolver(client, ratings.WithBatchDelay(0))),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		Reset(svc.Stop)

		Convey("An unrated contest falls back to current ratings", func() {
			perf, err := svc.CalculatePerformance(context.Background(), 42, "bob")
			So(err, ShouldBeNil)

			want, err := performance.CalculateRating(2, []float64{2100, 1800, 1700, 1500})
			So(err, ShouldBeNil)
			So(perf, ShouldEqual, want)
			So(userInfoCalls.Load(), ShouldEqual, 1)
		})

		Convey("Tied contestants share a performance", func() {
			res, err := svc.CalculateMultiplePerformances(context.Background(), 42, []string{"bob", "carol", "zed"})
			So(err, ShouldBeNil)
			So(*res[0].Performance, ShouldEqual, *res[1].Performance)
			So(res[2].Performance, ShouldBeNil)
			So(userInfoCalls.Load(), ShouldEqual, 1)
		})

		Convey("Stopping the service leaves an injected cache open", func() {
			_, err := svc.CalculatePerformance(context.Background(), 42, "alice")
			So(err, ShouldBeNil)
			svc.Stop()
			So(results.Len(), ShouldBeGreaterThan, 0)
		})
	})
}
