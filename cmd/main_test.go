package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/catalog/internal/adapters/http/api"
	"github.com/okian/catalog/internal/adapters/http/site"
	"github.com/okian/catalog/internal/adapters/http/swagger"
	service "github.com/okian/catalog/internal/app"
	"github.com/okian/catalog/internal/config"
	"github.com/okian/catalog/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given configuration from the environment", t, func() {
		dir := t.TempDir()
		venues := filepath.Join(dir, "venues.csv")
		events := filepath.Join(dir, "events.csv")
		convey.So(os.WriteFile(venues, []byte("venue_id,name\nv1,Musicbox\n"), 0o600), convey.ShouldBeNil)
		convey.So(os.WriteFile(events, []byte("event_id,title,start_datetime,venue_name\ne1,Fado,2024-05-01T21:00,musicbox\n"), 0o600), convey.ShouldBeNil)

		t.Setenv("CATALOG_ADDR", ":8181")
		t.Setenv("CATALOG_VENUES_URL", venues)
		t.Setenv("CATALOG_EVENTS_URL", events)
		t.Setenv("CATALOG_PASS_TIMEOUT_MS", "5000")

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the routes are wired as in main", func() {
			svc, err := service.FromConfig(cfg, service.WithLogger(logger.Nop()))
			convey.So(err, convey.ShouldBeNil)

			mux := http.NewServeMux()
			site.Register(context.Background(), mux)
			swagger.Register(context.Background(), mux)
			api.NewServer(svc).Register(context.Background(), mux)

			convey.Convey("Then an ingestion pass should be served", func() {
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest", http.NoBody))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `"venue_id":"v1"`)
			})

			convey.Convey("And the docs should be served", func() {
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the HTTP server is built", func() {
			srv := newHTTPServer(cfg, http.NewServeMux())

			convey.Convey("Then its write timeout should outlast a pass", func() {
				convey.So(srv.Addr, convey.ShouldEqual, ":8181")
				convey.So(srv.WriteTimeout, convey.ShouldEqual, 5*time.Second+writeSlack)
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			})
		})
	})

	convey.Convey("Given a pass without a deadline", t, func() {
		cfg := config.New(context.Background())
		cfg.PassTimeoutMS = 0

		convey.Convey("Then writes should not time out", func() {
			convey.So(newHTTPServer(cfg, http.NewServeMux()).WriteTimeout, convey.ShouldEqual, time.Duration(0))
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given an invalid address", t, func() {
		t.Setenv("CATALOG_ADDR", " ")

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}
