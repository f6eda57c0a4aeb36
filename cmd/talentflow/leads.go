package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/FlowNice/job-application-agent/internal/board"
	"github.com/FlowNice/job-application-agent/internal/config"
	"github.com/FlowNice/job-application-agent/internal/model"
	"github.com/FlowNice/job-application-agent/internal/pipeline"
	"github.com/FlowNice/job-application-agent/internal/store"
)

var (
	listStatus     string
	updateFeedback string
	deleteYes      bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and update stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, optionally filtered by status",
	Args:  cobra.NoArgs,
	RunE:  runLeadsList,
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one lead",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsShow,
}

var leadsUpdateCmd = &cobra.Command{
	Use:   "update <id> [status]",
	Short: "Move a lead to a new status",
	Long: "Applies a status transition. Without a status argument an interactive picker " +
		"offers the transitions allowed from the lead's current status.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runLeadsUpdate,
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsDelete,
}

func init() {
	leadsListCmd.Flags().StringVar(&listStatus, "status", "", "only show leads with this status")
	leadsUpdateCmd.Flags().StringVar(&updateFeedback, "feedback", "", "operator note stored with the lead")
	leadsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "do not ask for confirmation")

	leadsCmd.AddCommand(leadsListCmd, leadsShowCmd, leadsUpdateCmd, leadsDeleteCmd)
	rootCmd.AddCommand(leadsCmd)
}

// openStore loads config and opens the lead database.
func openStore() (*config.Config, *store.SQLiteStore, func(), error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, s, func() { s.Close() }, nil
}

func parseLeadID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid lead id %q", arg)
	}
	return id, nil
}

func runLeadsList(cmd *cobra.Command, args []string) error {
	var filter *model.Status
	if listStatus != "" {
		st, err := model.ParseStatus(listStatus)
		if err != nil {
			return err
		}
		filter = &st
	}

	_, s, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	leads, err := s.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVACANCY\tTITLE\tCOMPANY\tSTATUS\tUPDATED")
	for _, l := range leads {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.VacancyID, truncate(l.Title, 40), truncate(l.Company, 25), l.Status, l.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d leads\n", len(leads))
	return nil
}

func runLeadsShow(cmd *cobra.Command, args []string) error {
	id, err := parseLeadID(args[0])
	if err != nil {
		return err
	}
	_, s, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	lead, found, err := s.GetByID(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("lead %d: %w", id, model.ErrNotFound)
	}
	printLead(lead)
	return nil
}

func runLeadsUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseLeadID(args[0])
	if err != nil {
		return err
	}
	cfg, s, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	var status model.Status
	if len(args) == 2 {
		if status, err = model.ParseStatus(args[1]); err != nil {
			return err
		}
	} else {
		lead, found, err := s.GetByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("lead %d: %w", id, model.ErrNotFound)
		}
		picked, ok, err := board.RunStatusPicker(lead)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No change.")
			return nil
		}
		status = picked
	}

	var feedback *string
	if cmd.Flags().Changed("feedback") {
		feedback = &updateFeedback
	}

	logger := setupLogger(debug)
	n := setupNotifier(cfg, &http.Client{Timeout: cfg.Notification.Timeout}, logger)
	tracker := pipeline.NewTracker(s, n, cfg.Notification.Timeout, logger)

	lead, err := tracker.Transition(cmd.Context(), id, status, feedback)
	var te *model.TransitionError
	if errors.As(err, &te) {
		return fmt.Errorf("cannot move lead %d from %q to %q (allowed: %s)",
			id, te.From, te.To, joinStatuses(te.From.Next()))
	}
	if err != nil {
		return err
	}
	fmt.Printf("Lead %d is now %q\n", lead.ID, lead.Status)
	return nil
}

func runLeadsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseLeadID(args[0])
	if err != nil {
		return err
	}
	_, s, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	lead, found, err := s.GetByID(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("lead %d: %w", id, model.ErrNotFound)
	}

	if !deleteYes {
		ok, err := confirm(fmt.Sprintf("Delete lead %d (%s at %s)", lead.ID, lead.Title, lead.Company))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := s.Delete(context.WithoutCancel(cmd.Context()), id); err != nil {
		return err
	}
	fmt.Printf("Deleted lead %d\n", id)
	return nil
}

// confirm asks a yes/no question. Ctrl+C counts as no.
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func printLead(l model.Lead) {
	meetingLink := "n/a"
	if l.MeetingLink != nil {
		meetingLink = *l.MeetingLink
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%d\n", l.ID)
	fmt.Fprintf(w, "Vacancy\t%s\n", l.VacancyID)
	fmt.Fprintf(w, "Title\t%s\n", l.Title)
	fmt.Fprintf(w, "Company\t%s\n", l.Company)
	fmt.Fprintf(w, "URL\t%s\n", l.URL)
	fmt.Fprintf(w, "Recruiter\t%s <%s>\n", l.RecruiterName, l.RecruiterEmail)
	fmt.Fprintf(w, "Meeting link\t%s\n", meetingLink)
	fmt.Fprintf(w, "Status\t%s\n", l.Status)
	fmt.Fprintf(w, "Next\t%s\n", joinStatuses(l.Status.Next()))
	fmt.Fprintf(w, "Feedback\t%s\n", l.Feedback)
	fmt.Fprintf(w, "Created\t%s\n", l.CreatedAt.Local().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "Updated\t%s\n", l.UpdatedAt.Local().Format("2006-01-02 15:04 MST"))
	w.Flush()

	if l.GeneratedResponse != "" {
		fmt.Printf("\n--- Generated response ---\n%s\n", l.GeneratedResponse)
	}
}

func joinStatuses(statuses []model.Status) string {
	if len(statuses) == 0 {
		return "none (terminal)"
	}
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = string(st)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
