package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FlowNice/job-application-agent/internal/model"
	"github.com/FlowNice/job-application-agent/internal/notifier"
	"github.com/FlowNice/job-application-agent/internal/store"
)

var scanDryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle, print a summary, exit",
	Long: "One-shot scan: discovers vacancies from every enabled platform and processes them once. " +
		"With --dry-run nothing is persisted, no outreach is sent and notifications only go to the log.",
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "do not persist leads or send outreach")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	var leads model.LeadStore
	var n model.Notifier
	if scanDryRun {
		logger.Info("dry-run mode: no leads will be stored and no outreach sent")
		leads = store.NewNopStore()
		n = notifier.NewLogNotifier(logger)
	} else {
		// A scan must not race the daemon or another scan on the same database.
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
		leads = sqlStore
		n = setupNotifier(cfg, &http.Client{Timeout: cfg.Notification.Timeout}, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := buildOrchestrator(ctx, cfg, leads, n, scanDryRun, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	stats := orch.RunCycle(ctx)

	fmt.Printf("\nScanned %d platforms (%d failed), %d vacancies discovered, %d leads created\n",
		stats.Sources, stats.SourceErrs, stats.Discovered, stats.Created())
	outcomes := make([]string, 0, len(stats.Outcomes))
	for o, count := range stats.Outcomes {
		outcomes = append(outcomes, fmt.Sprintf("  %-18s %d", o, count))
	}
	sort.Strings(outcomes)
	for _, line := range outcomes {
		fmt.Println(line)
	}
	return nil
}
