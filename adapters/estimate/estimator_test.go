package estimate

import (
	"testing"

	"steward/domain/core"
	"steward/domain/grievance"
	"steward/domain/prediction"

	"github.com/stretchr/testify/assert"
)

func rankedCase(id string, outcome grievance.Outcome) prediction.RankedCase {
	return prediction.RankedCase{
		Case: grievance.HistoricalCase{
			ID:      core.CaseID(id),
			Outcome: outcome,
		},
		Similarity: 80,
	}
}

func TestEstimate_NoDataReturnsNeutralDefault(t *testing.T) {
	e := NewEstimator()
	got := e.Estimate(grievance.Context{CaseType: grievance.CaseGeneral}, nil, nil)

	assert.Equal(t, 50, got.Percentage)
	assert.Equal(t, prediction.TierLow, got.Confidence)
	assert.Equal(t, "N/A", got.Factors.SimilarCases)
	assert.Equal(t, "N/A", got.Factors.JustCause)
}

func TestEstimate_PercentageAlwaysInRange(t *testing.T) {
	e := NewEstimator()
	justCause := &grievance.JustCauseResults{
		Notice: grievance.TestPass, ReasonableRule: grievance.TestPass,
		Investigation: grievance.TestPass, FairInvestigation: grievance.TestPass,
		Proof: grievance.TestPass, EqualTreatment: grievance.TestPass,
		Penalty: grievance.TestPass,
	}
	violations := make([]grievance.Violation, 10)
	similar := []prediction.RankedCase{
		rankedCase("a", grievance.OutcomeGranted),
		rankedCase("b", grievance.OutcomeGranted),
	}

	got := e.Estimate(grievance.Context{CaseType: grievance.CaseOvertime, JustCause: justCause}, similar, violations)

	assert.GreaterOrEqual(t, got.Percentage, 0)
	assert.LessOrEqual(t, got.Percentage, 100)
	assert.Contains(t, []prediction.ConfidenceTier{
		prediction.TierLow, prediction.TierMedium, prediction.TierHigh,
	}, got.Confidence)
}

func TestEstimate_AllFactorsPresentIsHighConfidence(t *testing.T) {
	e := NewEstimator()
	justCause := &grievance.JustCauseResults{Notice: grievance.TestPass}
	similar := []prediction.RankedCase{rankedCase("a", grievance.OutcomeGranted)}

	got := e.Estimate(grievance.Context{CaseType: grievance.CaseTermination, JustCause: justCause}, similar, nil)

	// All five factors contributed: 0.30+0.25+0.20+0.15+0.10 = 1.0.
	assert.Equal(t, prediction.TierHigh, got.Confidence)
}

func TestEstimate_WithoutJustCauseIsMediumConfidence(t *testing.T) {
	e := NewEstimator()
	similar := []prediction.RankedCase{rankedCase("a", grievance.OutcomeGranted)}

	got := e.Estimate(grievance.Context{CaseType: grievance.CaseTermination}, similar, nil)

	// 0.30 + 0.25 + 0.15 + 0.10 = 0.80 still reaches high; dropping the
	// similar-case factor as well would fall to medium.
	assert.Equal(t, prediction.TierHigh, got.Confidence)

	got = e.Estimate(grievance.Context{CaseType: grievance.CaseTermination}, nil, []grievance.Violation{{Article: "4"}})
	// 0.25 + 0.15 + 0.10 = 0.50.
	assert.Equal(t, prediction.TierMedium, got.Confidence)
}

func TestEstimate_GrantRateDrivesScore(t *testing.T) {
	e := NewEstimator()
	allGranted := []prediction.RankedCase{
		rankedCase("a", grievance.OutcomeGranted),
		rankedCase("b", grievance.OutcomeGranted),
	}
	allDenied := []prediction.RankedCase{
		rankedCase("a", grievance.OutcomeDenied),
		rankedCase("b", grievance.OutcomeDenied),
	}
	ctx := grievance.Context{CaseType: grievance.CaseTermination}

	high := e.Estimate(ctx, allGranted, nil)
	low := e.Estimate(ctx, allDenied, nil)

	assert.Greater(t, high.Percentage, low.Percentage)
	assert.Equal(t, "100.0", high.Factors.SimilarCases)
	assert.Equal(t, "0.0", low.Factors.SimilarCases)
}

func TestEstimate_ContractClarityCapsAt90(t *testing.T) {
	e := NewEstimator()
	violations := make([]grievance.Violation, 8)
	got := e.Estimate(grievance.Context{CaseType: grievance.CaseContract}, nil, violations)
	assert.Equal(t, "90.0", got.Factors.ContractClarity)
}

func TestEstimate_JustCausePassRate(t *testing.T) {
	e := NewEstimator()
	justCause := &grievance.JustCauseResults{
		Notice:        grievance.TestPass,
		Investigation: grievance.TestPass,
		Proof:         grievance.TestFail,
	}
	got := e.Estimate(grievance.Context{CaseType: grievance.CaseDiscipline, JustCause: justCause}, nil, nil)
	// 2 of 7 tests pass.
	assert.Equal(t, "28.6", got.Factors.JustCause)
}

func TestEstimate_UnknownCaseTypeUsesDefaultBaseRate(t *testing.T) {
	e := NewEstimator()
	got := e.Estimate(grievance.Context{CaseType: grievance.CaseGeneral}, nil, []grievance.Violation{{Article: "1"}})
	assert.Equal(t, "50.0", got.Factors.CaseTypeBaseRate)
}

func TestEstimate_ConfigurableEvidenceScore(t *testing.T) {
	e := NewEstimatorWithEvidenceScore(80)
	similar := []prediction.RankedCase{rankedCase("a", grievance.OutcomeGranted)}
	got := e.Estimate(grievance.Context{CaseType: grievance.CaseTermination}, similar, nil)
	assert.Equal(t, "80.0", got.Factors.EvidenceStrength)
}
