package pipeline

// Outcome is the result of processing one vacancy.
type Outcome int

const (
	// OutcomeContacted: lead created and outreach delivered.
	OutcomeContacted Outcome = iota
	// OutcomeAnalysisComplete: lead created but outreach was not delivered.
	OutcomeAnalysisComplete
	// OutcomeDuplicate: a lead already exists for the vacancy id.
	OutcomeDuplicate
	// OutcomeFiltered: the vacancy did not match the title filters.
	OutcomeFiltered
	// OutcomeInvalid: the vacancy record failed validation.
	OutcomeInvalid
	// OutcomeDeferred: earlier analyses failed and the vacancy is backing off
	// or out of attempts.
	OutcomeDeferred
	// OutcomeAnalysisFailed: analysis failed or was unusable; no lead created.
	OutcomeAnalysisFailed
	// OutcomeFailed: store error or panic; nothing was recorded.
	OutcomeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeContacted:        "contacted",
	OutcomeAnalysisComplete: "analysis_complete",
	OutcomeDuplicate:        "duplicate",
	OutcomeFiltered:         "filtered",
	OutcomeInvalid:          "invalid",
	OutcomeDeferred:         "deferred",
	OutcomeAnalysisFailed:   "analysis_failed",
	OutcomeFailed:           "failed",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// CycleStats summarizes one scan cycle.
type CycleStats struct {
	Sources    int
	SourceErrs int
	Discovered int
	Outcomes   map[Outcome]int
}

// Created returns the number of leads created in the cycle.
func (s CycleStats) Created() int {
	return s.Outcomes[OutcomeContacted] + s.Outcomes[OutcomeAnalysisComplete]
}
