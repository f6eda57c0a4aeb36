package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/FlowNice/job-application-agent/internal/cache"
	"github.com/FlowNice/job-application-agent/internal/model"
)

const maxAnalysisBackoff = 24 * time.Hour

var errUnusableAnalysis = errors.New("analysis produced no response")

// Source is a named discovery source.
type Source struct {
	Name string
	model.VacancySource
}

// Deps are the collaborators of an Orchestrator. Meeting, Throttle and Filter
// may be nil.
type Deps struct {
	Sources    []Source
	Store      model.LeadStore
	Analyzer   model.Analyzer
	Meeting    model.MeetingIssuer
	Dispatcher model.Dispatcher
	Throttle   model.Throttle
	Notifier   model.Notifier
	Filter     model.VacancyFilter
	Cache      *cache.TTLCache
}

// Timeouts bound each boundary call. Zero means no timeout.
type Timeouts struct {
	Analyzer time.Duration
	Meeting  time.Duration
	Dispatch time.Duration
	Notify   time.Duration
	Store    time.Duration
}

// Config tunes the orchestrator.
type Config struct {
	EventTypeID             string
	MaxAnalysisAttempts     int           // <= 0 means unlimited
	AnalysisBackoff         time.Duration // base delay, doubled per failed attempt
	SeenTTL                 time.Duration // how long the in-process seen marker lives
	NotifyOnDispatchFailure bool
	Timeouts                Timeouts
}

// Orchestrator drives each discovered vacancy through
// dedup → analysis → meeting link → claim → outreach → settle → notification.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil Cache gets a fresh one.
func NewOrchestrator(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if deps.Cache == nil {
		deps.Cache = cache.New()
	}
	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger,
	}
}

// RunCycle discovers vacancies from every source and processes them one by
// one in discovery order. A failing source counts as zero vacancies.
// Cancellation is checked between vacancies; a vacancy already started runs
// to completion, bounded by the boundary timeouts.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleStats {
	stats := CycleStats{Sources: len(o.deps.Sources), Outcomes: make(map[Outcome]int)}

	for _, src := range o.deps.Sources {
		if ctx.Err() != nil {
			break
		}

		vacancies, err := src.ScanNewVacancies(ctx)
		if err != nil {
			stats.SourceErrs++
			o.logger.Error("discovery failed", "platform", src.Name, "boundary", "discovery", "error", err)
			continue
		}
		stats.Discovered += len(vacancies)

		for _, v := range vacancies {
			if ctx.Err() != nil {
				break
			}
			stats.Outcomes[o.Process(context.WithoutCancel(ctx), v)]++
		}
	}

	o.logger.Info("scan cycle complete",
		"sources", stats.Sources,
		"source_errors", stats.SourceErrs,
		"discovered", stats.Discovered,
		"created", stats.Created(),
		"duplicates", stats.Outcomes[OutcomeDuplicate],
		"analysis_failed", stats.Outcomes[OutcomeAnalysisFailed],
	)
	return stats
}

// Process handles one vacancy. It never returns an error and never panics;
// every failure is logged and reflected in the Outcome.
func (o *Orchestrator) Process(ctx context.Context, v model.Vacancy) (out Outcome) {
	logger := o.logger.With("vacancy_id", v.ID, "platform", v.Platform)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("vacancy processing panicked", "panic", r, "stack", string(debug.Stack()))
			out = OutcomeFailed
		}
	}()

	if err := o.validate.Struct(v); err != nil {
		logger.Warn("skipping invalid vacancy", "error", err)
		return OutcomeInvalid
	}
	if o.deps.Filter != nil && !o.deps.Filter.Match(v) {
		logger.Debug("vacancy filtered out", "title", v.Title)
		return OutcomeFiltered
	}

	// Dedup. The cache only short-circuits; the store is authoritative.
	if _, ok := o.deps.Cache.Get(seenKey(v.ID)); ok {
		logger.Debug("skip: vacancy already handled")
		return OutcomeDuplicate
	}
	existing, found, err := o.lookup(ctx, v.ID)
	if err != nil {
		logger.Error("dedup lookup failed", "boundary", "store", "error", err)
		return OutcomeFailed
	}
	if found {
		o.markSeen(v.ID)
		logger.Info("skip: lead already exists", "lead_id", existing.ID, "status", string(existing.Status))
		return OutcomeDuplicate
	}

	prevAttempts, ok := o.analysisAllowed(ctx, v.ID, logger)
	if !ok {
		return OutcomeDeferred
	}

	analysis, err := o.analyze(ctx, v)
	if err == nil && !analysis.Usable() {
		err = errUnusableAnalysis
	}
	if err != nil {
		logger.Warn("analysis failed", "boundary", "analyzer", "error", err)
		o.recordAnalysisFailure(ctx, v.ID, prevAttempts, err, logger)
		return OutcomeAnalysisFailed
	}

	recruiterName := firstNonEmpty(v.RecruiterName, analysis.RecruiterName)
	recruiterEmail := firstNonEmpty(v.RecruiterEmail, analysis.RecruiterEmail)

	link := o.issueLink(ctx, recruiterName, recruiterEmail, logger)

	// Claim the vacancy before any outreach. Only the worker whose insert wins
	// may send, so two processes sharing the database never both dispatch.
	lead, created, err := o.create(ctx, model.NewLead{
		VacancyID:         v.ID,
		Title:             v.Title,
		Company:           v.Company,
		URL:               v.URL,
		RecruiterName:     recruiterName,
		RecruiterEmail:    recruiterEmail,
		GeneratedResponse: analysis.GeneratedResponse,
		MeetingLink:       link,
		Status:            model.StatusNew,
	})
	if err != nil {
		logger.Error("claiming lead failed, nothing sent", "boundary", "store", "error", err)
		return OutcomeFailed
	}
	o.markSeen(v.ID)
	if !created {
		logger.Info("lead claimed concurrently, skipping outreach", "lead_id", lead.ID)
		return OutcomeDuplicate
	}
	o.clearAnalysisFailure(ctx, v.ID, logger)
	logger = logger.With("lead_id", lead.ID)

	sent := o.dispatch(ctx, v.ID, analysis.GeneratedResponse, logger)

	status := model.StatusAnalysisComplete
	if sent {
		status = model.StatusContacted
	}
	lead, err = o.settle(ctx, lead.ID, status)
	if err != nil {
		// The lead stays New; it is never dispatched again.
		logger.Error("recording outreach result failed", "boundary", "store", "outreach_sent", sent, "error", err)
		return OutcomeFailed
	}

	logger = logger.With("status", string(lead.Status))
	if sent {
		logger.Info("lead contacted")
		o.notify(ctx, model.LeadEvent{Kind: model.EventNewLead, Lead: lead}, logger)
		return OutcomeContacted
	}

	logger.Warn("outreach not delivered, lead stored for manual follow-up")
	if o.cfg.NotifyOnDispatchFailure {
		o.notify(ctx, model.LeadEvent{Kind: model.EventDispatchFailed, Lead: lead}, logger)
	}
	return OutcomeAnalysisComplete
}

func (o *Orchestrator) lookup(ctx context.Context, vacancyID string) (model.Lead, bool, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Store)
	defer cancel()
	return o.deps.Store.GetByVacancyID(ctx, vacancyID)
}

func (o *Orchestrator) create(ctx context.Context, nl model.NewLead) (model.Lead, bool, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Store)
	defer cancel()
	return o.deps.Store.Create(ctx, nl)
}

// settle moves a claimed lead from New to its post-outreach status.
func (o *Orchestrator) settle(ctx context.Context, id int64, status model.Status) (model.Lead, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Store)
	defer cancel()
	lead, _, err := o.deps.Store.UpdateStatus(ctx, id, status, nil)
	return lead, err
}

// analysisAllowed reports whether the vacancy may be analyzed now, and how
// many failed attempts preceded this one. A bookkeeping read error allows the
// attempt; analysis has no external side effects.
func (o *Orchestrator) analysisAllowed(ctx context.Context, vacancyID string, logger *slog.Logger) (int, bool) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Store)
	defer cancel()

	attempt, found, err := o.deps.Store.AnalysisAttempt(ctx, vacancyID)
	if err != nil {
		logger.Warn("reading analysis attempts failed", "boundary", "store", "error", err)
		return 0, true
	}
	if !found {
		return 0, true
	}
	if o.cfg.MaxAnalysisAttempts > 0 && attempt.Attempts >= o.cfg.MaxAnalysisAttempts {
		logger.Debug("skip: analysis attempts exhausted", "attempts", attempt.Attempts, "last_error", attempt.LastError)
		return attempt.Attempts, false
	}
	if o.now().Before(attempt.NextAttemptAt) {
		logger.Debug("skip: analysis backing off", "attempts", attempt.Attempts, "next_attempt_at", attempt.NextAttemptAt)
		return attempt.Attempts, false
	}
	return attempt.Attempts, true
}

func (o *Orchestrator) recordAnalysisFailure(ctx context.Context, vacancyID string, prevAttempts int, cause error, logger *slog.Logger) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Store)
	defer cancel()

	attempt, err := o.deps.Store.RecordAnalysisFailure(ctx, vacancyID, cause, o.backoff(prevAttempts))
	if err != nil {
		logger.Error("recording analysis failure failed", "boundary", "store", "error", err)
		return
	}
	if o.cfg.MaxAnalysisAttempts > 0 && attempt.Attempts >= o.cfg.MaxAnalysisAttempts {
		logger.Warn("giving up on vacancy", "attempts", attempt.Attempts)
	}
}

func (o *Orchestrator) clearAnalysisFailure(ctx context.Context, vacancyID string, logger *slog.Logger) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Store)
	defer cancel()
	if err := o.deps.Store.ClearAnalysisFailure(ctx, vacancyID); err != nil {
		logger.Warn("clearing analysis attempts failed", "boundary", "store", "error", err)
	}
}

// backoff is base * 2^prevAttempts, capped at maxAnalysisBackoff.
func (o *Orchestrator) backoff(prevAttempts int) time.Duration {
	d := o.cfg.AnalysisBackoff
	for i := 0; i < prevAttempts && d < maxAnalysisBackoff; i++ {
		d *= 2
	}
	return min(d, maxAnalysisBackoff)
}

func (o *Orchestrator) analyze(ctx context.Context, v model.Vacancy) (model.Analysis, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Analyzer)
	defer cancel()
	return o.deps.Analyzer.Analyze(ctx, v)
}

// issueLink returns nil when no issuer is configured or issuance fails.
func (o *Orchestrator) issueLink(ctx context.Context, name, email string, logger *slog.Logger) *string {
	if o.deps.Meeting == nil {
		return nil
	}
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Meeting)
	defer cancel()

	link, err := o.deps.Meeting.IssueSingleUseLink(ctx, name, email, o.cfg.EventTypeID)
	if err != nil {
		logger.Warn("meeting link issuance failed, continuing without link", "boundary", "meeting", "error", err)
		return nil
	}
	if link == "" {
		return nil
	}
	return &link
}

// dispatch calls the dispatcher exactly once. Errors count as not sent.
// The throttle wait happens before the dispatch timeout starts, so a queued
// send is delayed rather than dropped.
func (o *Orchestrator) dispatch(ctx context.Context, vacancyID, message string, logger *slog.Logger) bool {
	if o.deps.Throttle != nil {
		if err := o.deps.Throttle.Wait(ctx); err != nil {
			logger.Warn("outreach throttle wait failed", "boundary", "dispatcher", "error", err)
			return false
		}
	}

	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Dispatch)
	defer cancel()

	sent, err := o.deps.Dispatcher.Send(ctx, vacancyID, message)
	if err != nil {
		logger.Warn("outreach dispatch failed", "boundary", "dispatcher", "error", err)
		return false
	}
	return sent
}

func (o *Orchestrator) notify(ctx context.Context, e model.LeadEvent, logger *slog.Logger) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeouts.Notify)
	defer cancel()
	if err := o.deps.Notifier.Notify(ctx, e); err != nil {
		logger.Warn("notification failed", "boundary", "notifier", "event", string(e.Kind), "error", err)
	}
}

func (o *Orchestrator) markSeen(vacancyID string) {
	o.deps.Cache.Set(seenKey(vacancyID), true, o.cfg.SeenTTL)
}

func seenKey(vacancyID string) string {
	return fmt.Sprintf("seen:%s", vacancyID)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
