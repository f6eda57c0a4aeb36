package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FlowNice/job-application-agent/internal/api"
	"github.com/FlowNice/job-application-agent/internal/pipeline"
	"github.com/FlowNice/job-application-agent/internal/scheduler"
	"github.com/FlowNice/job-application-agent/internal/store"
)

var noAPI bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scan daemon",
	Long: "Start the scheduler daemon and, when api.listen is set, the operator API; " +
		"blocks until SIGINT/SIGTERM.",
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&noAPI, "no-api", false, "do not start the operator API even if api.listen is set")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	logger.Info("config loaded",
		"interval", cfg.Agent.ScanInterval.String(),
		"platforms", len(cfg.EnabledPlatforms()),
		"title_keywords", len(cfg.Filters.TitleKeywords),
		"max_analysis_attempts", cfg.Agent.MaxAnalysisAttempts,
		"meeting", cfg.Meeting.Provider,
		"outreach", cfg.Outreach.Type,
	)

	// One daemon or scan per database file.
	lock, err := store.Lock(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to acquire database lock", "error", err)
		os.Exit(1)
	}
	defer lock.Unlock()

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := setupNotifier(cfg, &http.Client{Timeout: cfg.Notification.Timeout}, logger)
	orch, err := buildOrchestrator(ctx, cfg, sqlStore, n, false, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	sched := scheduler.NewScheduler(orch, cfg.Agent.ScanInterval, logger)
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if cfg.API.Listen != "" && !noAPI {
		tracker := pipeline.NewTracker(sqlStore, n, cfg.Notification.Timeout, logger)
		srv := api.NewServer(sqlStore, tracker, cfg.API.JWTSecret, logger)
		g.Go(func() error {
			return srv.Run(gctx, cfg.API.Listen)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("daemon error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
