package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/vacancy_analysis.md
var vacancyAnalysisPromptRaw string

// VacancyAnalysisTemplate is the parsed prompt template for vacancy analysis.
// It is executed with a model.Vacancy.
var VacancyAnalysisTemplate = template.Must(template.New("vacancy_analysis").Parse(vacancyAnalysisPromptRaw))
