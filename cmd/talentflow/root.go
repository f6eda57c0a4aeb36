package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FlowNice/job-application-agent/internal/adapter"
	"github.com/FlowNice/job-application-agent/internal/ai"
	"github.com/FlowNice/job-application-agent/internal/cache"
	"github.com/FlowNice/job-application-agent/internal/config"
	"github.com/FlowNice/job-application-agent/internal/filter"
	"github.com/FlowNice/job-application-agent/internal/meeting"
	"github.com/FlowNice/job-application-agent/internal/model"
	"github.com/FlowNice/job-application-agent/internal/notifier"
	"github.com/FlowNice/job-application-agent/internal/outreach"
	"github.com/FlowNice/job-application-agent/internal/pipeline"
	"github.com/FlowNice/job-application-agent/internal/ratelimit"
	"github.com/FlowNice/job-application-agent/internal/retry"
	"github.com/FlowNice/job-application-agent/internal/secrets"
)

var (
	cfgPath string
	debug   bool
	jsonLog bool
)

var rootCmd = &cobra.Command{
	Use:   "talentflow",
	Short: "Lead agent: discover vacancies, reach out, track leads",
	Long: "TalentFlow scans vacancy feeds, analyzes each new vacancy with an LLM, " +
		"sends the generated response with a meeting link, and tracks every lead through its lifecycle.",
	SilenceUsage: true,
	// Default to `start` so that `talentflow` with no args runs the daemon.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: TALENTFLOW_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json", false, "log as JSON")
}

// loadConfig resolves the config path and parses it. Empty credentials are
// looked up in the OS keychain.
func loadConfig(path string) (*config.Config, error) {
	return config.Load(config.ResolvePath(path), secrets.Lookup)
}

// mustLoadConfig logs the error and exits; configuration errors are fatal.
func mustLoadConfig(logger *slog.Logger) *config.Config {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if jsonLog {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// silentLogger is used by TUI commands; log output corrupts the alt screen.
func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	n := cfg.Notification
	switch n.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.MultiNotifier{
			notifier.NewLogNotifier(logger),
			notifier.NewSlackNotifier(n.WebhookURL, httpClient, logger),
		}
	case "email":
		logger.Info("using email notifier", "operator", n.OperatorEmail)
		return notifier.MultiNotifier{
			notifier.NewLogNotifier(logger),
			notifier.NewEmailNotifier(notifier.SMTPConfig{
				Host:     n.SMTPHost,
				Port:     n.SMTPPort,
				Username: n.SMTPUsername,
				Password: n.SMTPPassword,
				From:     n.SMTPFrom,
			}, n.OperatorEmail, logger),
		}
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// setupAnalyzer builds provider -> retry -> LLM analyzer -> result cache.
func setupAnalyzer(ctx context.Context, cfg *config.Config, c *cache.TTLCache, logger *slog.Logger) (model.Analyzer, error) {
	var provider ai.LLMProvider
	switch cfg.AI.Provider {
	case "gemini":
		gp, err := ai.NewGeminiProvider(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini provider: %w", err)
		}
		provider = gp
	default:
		provider = ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, &http.Client{Timeout: cfg.AI.Timeout})
	}
	logger.Info("analyzer configured", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	provider = retry.NewRetryProvider(provider, retry.DefaultPolicy, logger)
	analyzer := ai.NewLLMVacancyAnalyzer(provider, ai.VacancyAnalysisTemplate, logger)
	return ai.NewCachingAnalyzer(analyzer, c, cfg.Agent.CacheTTL), nil
}

// setupMeeting returns nil for provider "none".
func setupMeeting(cfg *config.Config, httpClient *http.Client) model.MeetingIssuer {
	switch cfg.Meeting.Provider {
	case "calendly":
		return meeting.NewCalendlyIssuer(cfg.Meeting.BaseURL, cfg.Meeting.APIToken, httpClient)
	case "static":
		return meeting.NewStaticIssuer(cfg.Meeting.BaseURL)
	default:
		return nil
	}
}

// setupDispatcher returns the dispatcher and, for real outreach, the throttle
// that spaces sends out.
func setupDispatcher(cfg *config.Config, dryRun bool, httpClient *http.Client, logger *slog.Logger) (model.Dispatcher, model.Throttle) {
	if dryRun || cfg.Outreach.Type == "dry-run" {
		logger.Info("outreach in dry-run mode, messages are logged only")
		return outreach.NewDryRunDispatcher(logger), nil
	}
	d := outreach.NewHTTPDispatcher(cfg.Outreach.Endpoint, cfg.Outreach.APIToken, httpClient, logger)
	return d, ratelimit.NewOutreachThrottle(float64(cfg.Outreach.RatePerMinute))
}

// buildSources wraps each enabled platform feed with retry and per-platform
// rate limiting.
func buildSources(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []pipeline.Source {
	limiter := ratelimit.NewKeyedLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	var sources []pipeline.Source
	for _, name := range cfg.EnabledPlatforms() {
		p := cfg.Platforms[name]
		var src model.VacancySource = adapter.NewFeedAdapter(name, p.FeedURL, p.APIToken, httpClient)
		src = ratelimit.NewRateLimitedSource(src, limiter, name)
		src = retry.NewRetrySource(src, name, retry.DefaultPolicy, logger)
		sources = append(sources, pipeline.Source{Name: name, VacancySource: src})
		logger.Info("registered platform", "platform", name)
	}
	return sources
}

// buildOrchestrator assembles the pipeline for start and scan.
func buildOrchestrator(ctx context.Context, cfg *config.Config, leads model.LeadStore, n model.Notifier, dryRun bool, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	c := cache.New()

	analyzer, err := setupAnalyzer(ctx, cfg, c, logger)
	if err != nil {
		return nil, err
	}

	sources := buildSources(cfg, httpClient, logger)
	if len(sources) == 0 {
		return nil, fmt.Errorf("no platforms to scan")
	}

	dispatcher, throttle := setupDispatcher(cfg, dryRun, &http.Client{Timeout: cfg.Outreach.Timeout}, logger)
	deps := pipeline.Deps{
		Sources:    sources,
		Store:      leads,
		Analyzer:   analyzer,
		Meeting:    setupMeeting(cfg, &http.Client{Timeout: cfg.Meeting.Timeout}),
		Dispatcher: dispatcher,
		Throttle:   throttle,
		Notifier:   n,
		Filter:     filter.NewTitleFilter(cfg.Filters.TitleKeywords, cfg.Filters.TitleExcludeKeywords),
		Cache:      c,
	}
	pcfg := pipeline.Config{
		EventTypeID:             cfg.Meeting.EventTypeID,
		MaxAnalysisAttempts:     cfg.Agent.MaxAnalysisAttempts,
		AnalysisBackoff:         cfg.Agent.AnalysisBackoff,
		SeenTTL:                 cfg.Agent.CacheTTL,
		NotifyOnDispatchFailure: cfg.Notification.OnDispatchFailure,
		Timeouts: pipeline.Timeouts{
			Analyzer: cfg.AI.Timeout,
			Meeting:  cfg.Meeting.Timeout,
			Dispatch: cfg.Outreach.Timeout,
			Notify:   cfg.Notification.Timeout,
			Store:    cfg.Database.Timeout,
		},
	}
	return pipeline.NewOrchestrator(deps, pcfg, logger), nil
}
