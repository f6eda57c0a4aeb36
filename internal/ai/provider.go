package ai

import "context"

// LLMProvider sends a prompt to an LLM and returns the raw text response.
// Used by LLMVacancyAnalyzer; the rest of the system sees model.Analyzer.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
