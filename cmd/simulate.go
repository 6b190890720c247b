package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/drillcore/internal/adapters/storage/memstore"
	"github.com/okian/drillcore/internal/adapters/storage/sqlstore"
	service "github.com/okian/drillcore/internal/app"
	"github.com/okian/drillcore/internal/config"
	"github.com/okian/drillcore/internal/simulate"
	"github.com/okian/drillcore/pkg/logger"
)

// Default simulation constants.
const (
	defaultRuns    = 3
	defaultTimeout = 30 * time.Second
	defaultTotal   = 10 * time.Minute
)

type simulateOptions struct {
	cfg     simulate.Config
	local   bool
	sqlite  string
	verbose bool
}

func newSimulateCommand() *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play scripted runs against a server or an in-process session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(cmd.OutOrStdout(), logger.FormatText); err != nil {
				return err
			}
			if opts.verbose {
				_ = logger.SetLevelString("debug")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTotal)
			defer cancel()
			return runSimulation(ctx, opts)
		},
	}
	cmd.Example = `  drillcore simulate --runs 5 --accuracy 0.9
  drillcore simulate --local --accuracy 0.3 --fold-bias 0.8 --output report.json
  drillcore simulate --local --sqlite sim.db`

	f := cmd.Flags()
	f.StringVar(&opts.cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.BoolVar(&opts.local, "local", false, "serve an in-process session instead of using --url")
	f.StringVar(&opts.sqlite, "sqlite", "", "with --local, record into this sqlite file instead of memory")
	f.IntVar(&opts.cfg.Runs, "runs", defaultRuns, "number of runs to play")
	f.StringVar(&opts.cfg.GameID, "game", "mtt_01", "game id recorded on every run")
	f.IntVar(&opts.cfg.Difficulty, "difficulty", 1, "run difficulty")
	f.BoolVar(&opts.cfg.Practice, "practice", false, "play practice runs")
	f.Float64Var(&opts.cfg.Accuracy, "accuracy", 0.85, "probability of a correct answer")
	f.Float64Var(&opts.cfg.FoldBias, "fold-bias", 0, "probability a wrong answer is a fold")
	f.DurationVar(&opts.cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.Int64Var(&opts.cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	f.StringVar(&opts.cfg.Output, "output", "", "write a JSON report to this path")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log every run")
	return cmd
}

func runSimulation(ctx context.Context, opts *simulateOptions) error {
	log := logger.Named("simulate")
	cfg := opts.cfg
	if opts.local {
		url, stop, err := startLocal(ctx, opts.sqlite, log)
		if err != nil {
			return err
		}
		defer stop()
		cfg.BaseURL = url
	}
	_, err := simulate.Run(ctx, &cfg, log)
	return err
}

// startLocal serves a fresh session on a loopback port and returns its URL.
func startLocal(ctx context.Context, sqlitePath string, log logger.Logger) (string, func(), error) {
	cfg := config.New()
	cfg.StoreDriver = config.DriverMemory
	opts := []service.Option{
		service.WithConfig(cfg),
		service.WithLogger(log.Named("session")),
	}
	if sqlitePath != "" {
		st, err := sqlstore.OpenSQLite(ctx, sqlitePath, sqlstore.WithLogger(log.Named("store")))
		if err != nil {
			return "", nil, err
		}
		opts = append(opts, service.WithStore(st), service.WithCache(sqlstore.NewCache(st)))
	} else {
		opts = append(opts, service.WithStore(memstore.New()), service.WithCache(memstore.NewCache()))
	}

	sess := service.New(opts...)
	if err := sess.Start(ctx); err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = sess.Stop(ctx)
		return "", nil, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: newHandler(sess, cfg, log), ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "local server failed", logger.Error(err))
		}
	}()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = sess.Stop(shutdownCtx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
