package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure LLMVacancyAnalyzer implements model.Analyzer.
var _ model.Analyzer = (*LLMVacancyAnalyzer)(nil)

const (
	maxResponsibilities = 5
	maxRequirements     = 8
	maxKPIs             = 5
)

// LLMVacancyAnalyzer implements model.Analyzer using an LLM.
type LLMVacancyAnalyzer struct {
	provider LLMProvider
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewLLMVacancyAnalyzer creates an analyzer that renders tmpl with the vacancy
// and parses the provider's JSON reply.
func NewLLMVacancyAnalyzer(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *LLMVacancyAnalyzer {
	return &LLMVacancyAnalyzer{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// Analyze extracts the structured analysis and the outreach message for v.
// A vacancy without any text is an error; there is nothing to respond to.
func (a *LLMVacancyAnalyzer) Analyze(ctx context.Context, v model.Vacancy) (model.Analysis, error) {
	if strings.TrimSpace(v.Text()) == "" {
		return model.Analysis{}, fmt.Errorf("vacancy %s has no description", v.ID)
	}

	var promptBuf bytes.Buffer
	if err := a.tmpl.Execute(&promptBuf, v); err != nil {
		return model.Analysis{}, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := a.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return model.Analysis{}, fmt.Errorf("llm complete: %w", err)
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}

	if a.logger != nil {
		a.logger.Debug("vacancy analyzed",
			"vacancy_id", v.ID,
			"seniority", analysis.Seniority,
			"requirements", len(analysis.TechnicalRequirements),
		)
	}
	return analysis, nil
}

// rawAnalysis is the JSON shape returned by the LLM (matches vacancyAnalysisSchema).
type rawAnalysis struct {
	KeyResponsibilities   []string `json:"key_responsibilities"`
	TechnicalRequirements []string `json:"technical_requirements"`
	KPIs                  []string `json:"kpis"`
	Seniority             string   `json:"seniority"`
	GeneratedResponse     string   `json:"generated_response"`
	RecruiterName         string   `json:"recruiter_name"`
	RecruiterEmail        string   `json:"recruiter_email"`
}

// parseAnalysis deserializes the LLM response. Providers without server-side
// schemas sometimes wrap the object in a markdown fence, which is stripped.
func parseAnalysis(raw string) (model.Analysis, error) {
	var ra rawAnalysis
	if err := json.Unmarshal([]byte(stripFence(raw)), &ra); err != nil {
		return model.Analysis{}, fmt.Errorf("unmarshal analysis JSON: %w", err)
	}

	return model.Analysis{
		KeyResponsibilities:   capList(ra.KeyResponsibilities, maxResponsibilities),
		TechnicalRequirements: capList(ra.TechnicalRequirements, maxRequirements),
		KPIs:                  capList(ra.KPIs, maxKPIs),
		Seniority:             strings.TrimSpace(ra.Seniority),
		GeneratedResponse:     strings.TrimSpace(ra.GeneratedResponse),
		RecruiterName:         strings.TrimSpace(ra.RecruiterName),
		RecruiterEmail:        strings.TrimSpace(ra.RecruiterEmail),
	}, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func capList(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
		if len(out) == max {
			break
		}
	}
	return out
}
