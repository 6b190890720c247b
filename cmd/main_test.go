package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/drillcore/internal/adapters/catalog"
	"github.com/okian/drillcore/internal/adapters/storage/memstore"
	"github.com/okian/drillcore/internal/adapters/storage/sqlstore"
	service "github.com/okian/drillcore/internal/app"
	"github.com/okian/drillcore/internal/config"
	"github.com/okian/drillcore/pkg/logger"
)

func TestConfigLoading(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		t.Setenv("DRILL_ADDR", ":8080")
		t.Setenv("DRILL_STORE_DRIVER", "memory")
		t.Setenv("DRILL_LOG_FORMAT", "json")

		convey.Convey("Then loadConfig applies them and initializes logging", func() {
			cfg, err := loadConfig(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(func() { logger.Get() }, convey.ShouldNotPanic)
		})
	})

	convey.Convey("Given an invalid store driver", t, func() {
		t.Setenv("DRILL_STORE_DRIVER", "mysql")

		convey.Convey("Then loading fails", func() {
			cfg, err := loadConfig(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given store drivers", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the driver is memory", func() {
			cfg.StoreDriver = config.DriverMemory
			st, cache, err := openStore(ctx, cfg, logger.Nop())

			convey.Convey("Then in-memory adapters are used", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := st.(*memstore.Store)
				convey.So(ok, convey.ShouldBeTrue)
				_, ok = cache.(*memstore.Cache)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the driver is sqlite", func() {
			cfg.SQLitePath = filepath.Join(t.TempDir(), "drill.db")
			st, cache, err := openStore(ctx, cfg, logger.Nop())

			convey.Convey("Then a migrated file store and its cache are used", func() {
				convey.So(err, convey.ShouldBeNil)
				sq, ok := st.(*sqlstore.Store)
				convey.So(ok, convey.ShouldBeTrue)
				defer func() { _ = sq.Close() }()
				_, ok = cache.(*sqlstore.Cache)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(sq.Ping(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the memory driver asks for a SQL store", func() {
			cfg.StoreDriver = config.DriverMemory
			_, err := openSQLStore(ctx, cfg, logger.Nop())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestNewCatalog(t *testing.T) {
	convey.Convey("Given catalog settings", t, func() {
		cfg := config.New()

		convey.Convey("Then no path uses the built-in list", func() {
			_, ok := newCatalog(cfg).(*catalog.Static)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("Then a path uses the YAML file", func() {
			cfg.CatalogPath = "catalog.yaml"
			_, ok := newCatalog(cfg).(*catalog.File)
			convey.So(ok, convey.ShouldBeTrue)
		})
	})
}

func TestCommands(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCommand()

		convey.Convey("Then serve, migrate and simulate are registered", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			convey.So(names["serve"], convey.ShouldBeTrue)
			convey.So(names["migrate"], convey.ShouldBeTrue)
			convey.So(names["simulate"], convey.ShouldBeTrue)
		})

		convey.Convey("When migrate runs against a fresh sqlite file", func() {
			path := filepath.Join(t.TempDir(), "m.db")
			t.Setenv("DRILL_SQLITE_PATH", path)
			root.SetArgs([]string{"migrate"})
			root.SetOut(&bytes.Buffer{})

			convey.Convey("Then the database file exists", func() {
				convey.So(root.ExecuteContext(context.Background()), convey.ShouldBeNil)
				_, err := os.Stat(path)
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When simulate runs against a live handler", func() {
			ctx := context.Background()
			cfg := config.New()
			sess := service.New(
				service.WithConfig(cfg),
				service.WithStore(memstore.New()),
				service.WithLogger(logger.Nop()),
			)
			convey.So(sess.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = sess.Stop(ctx) }()
			srv := httptest.NewServer(newHandler(sess, cfg, logger.Nop()))
			defer srv.Close()

			out := &bytes.Buffer{}
			root.SetOut(out)
			root.SetArgs([]string{"simulate", "--url", srv.URL, "--runs", "1", "--accuracy", "1", "--seed", "3"})

			convey.Convey("Then it completes and logs final statistics", func() {
				convey.So(root.ExecuteContext(ctx), convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "final statistics")

				resp, err := http.Get(srv.URL + "/stats")
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestSimulateLocal(t *testing.T) {
	convey.Convey("Given the simulate command in local mode", t, func() {
		root := newRootCommand()
		out := &bytes.Buffer{}
		root.SetOut(out)

		convey.Convey("When it records into a sqlite file", func() {
			path := filepath.Join(t.TempDir(), "sim.db")
			root.SetArgs([]string{"simulate", "--local", "--sqlite", path, "--runs", "1", "--accuracy", "1", "--seed", "5"})

			convey.Convey("Then the run's authoritative events are in the file", func() {
				convey.So(root.ExecuteContext(context.Background()), convey.ShouldBeNil)
				st, err := sqlstore.OpenSQLite(context.Background(), path)
				convey.So(err, convey.ShouldBeNil)
				defer func() { _ = st.Close() }()
				n, err := st.Count(context.Background())
				convey.So(err, convey.ShouldBeNil)
				// RUN_STARTED, 20 answers, RUN_COMPLETED, LEVEL_ADVANCED, DAILY_ROTATION
				convey.So(n, convey.ShouldEqual, 24)
			})
		})

		convey.Convey("When it runs in memory", func() {
			root.SetArgs([]string{"simulate", "--local", "--runs", "2", "--accuracy", "0.5", "--seed", "9"})

			convey.Convey("Then it finishes", func() {
				convey.So(root.ExecuteContext(context.Background()), convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "final statistics")
			})
		})
	})
}

func TestServiceMetricsUpdater(t *testing.T) {
	convey.Convey("Given a session", t, func() {
		sess := service.New(service.WithLogger(logger.Nop()))

		convey.Convey("Then the updater returns once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startServiceMetricsUpdater(ctx, sess) }, convey.ShouldNotPanic)
		})
	})
}
