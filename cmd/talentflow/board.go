package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/FlowNice/job-application-agent/internal/board"
	"github.com/FlowNice/job-application-agent/internal/model"
	"github.com/FlowNice/job-application-agent/internal/pipeline"
)

var (
	boardReadOnly bool
	boardStatus   string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Browse leads interactively (TUI)",
	Long: "Loads leads (all, or only those with --status) and opens the split-pane lead board. " +
		"Number keys in the detail view move a lead to an allowed status.",
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().BoolVar(&boardReadOnly, "read-only", false, "disable status changes")
	boardCmd.Flags().StringVar(&boardStatus, "status", "", `only load leads with this status, e.g. "Contacted"`)
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	var filter *model.Status
	if boardStatus != "" {
		st, err := model.ParseStatus(boardStatus)
		if err != nil {
			return err
		}
		filter = &st
	}

	cfg, s, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	leads, err := board.Load(s, filter)
	if err != nil {
		return fmt.Errorf("loading leads: %w", err)
	}
	if len(leads) == 0 && filter != nil {
		return nil
	}

	var tracker board.Transitioner
	if !boardReadOnly {
		// Notifications still go out; the log notifier is silenced for the alt screen.
		n := setupNotifier(cfg, &http.Client{Timeout: cfg.Notification.Timeout}, silentLogger())
		tracker = pipeline.NewTracker(s, n, cfg.Notification.Timeout, silentLogger())
	}
	return board.Run(leads, tracker)
}
