package estimate

import (
	"fmt"
	"math"

	"steward/domain/grievance"
	"steward/domain/prediction"
)

// Factor weights. A factor only adds its weight to the denominator when its
// input data is actually present, so the confidence tier reflects how much
// of the estimate is backed by real data rather than defaults.
const (
	weightSimilarCases    = 0.30
	weightContractClarity = 0.25
	weightJustCause       = 0.20
	weightEvidence        = 0.15
	weightCaseTypeRate    = 0.10
)

const justCauseTestCount = 7

// baseRates are per-case-type historical grant rates, out of 100.
var baseRates = map[grievance.CaseType]float64{
	grievance.CaseTermination: 65,
	grievance.CaseDiscipline:  75,
	grievance.CaseOvertime:    85,
	grievance.CaseSeniority:   75,
	grievance.CaseContract:    80,
	grievance.CaseSafety:      70,
	grievance.CaseHarassment:  60,
	grievance.CaseWeingarten:  70,
}

const defaultBaseRate = 50

// Estimator combines similar-case outcomes, contract clarity, just-cause
// pass rates, evidence strength, and case-type base rates into one bounded
// win-probability estimate with a data-coverage confidence tier.
type Estimator struct {
	// evidenceScore is an acknowledged simplification: a flat default
	// rather than a computed signal. Configurable so a richer evidence
	// model can replace it without touching the weighting.
	evidenceScore float64
}

// NewEstimator creates an estimator with the default evidence score (60).
func NewEstimator() *Estimator {
	return &Estimator{evidenceScore: 60}
}

// NewEstimatorWithEvidenceScore overrides the flat evidence sub-score.
func NewEstimatorWithEvidenceScore(score float64) *Estimator {
	return &Estimator{evidenceScore: score}
}

// Estimate produces a win-probability percentage in [0,100] with a
// confidence tier and the per-factor breakdown. Absence of data is not an
// error: with nothing to go on the estimate is a neutral 50 at low
// confidence.
func (e *Estimator) Estimate(ctx grievance.Context, similarCases []prediction.RankedCase, violations []grievance.Violation) prediction.WinEstimate {
	score := 0.0
	totalWeight := 0.0
	factors := prediction.FactorBreakdown{
		SimilarCases: "N/A",
		JustCause:    "N/A",
	}

	// With no precedent, no violations, and no just-cause data the only
	// inputs left are constants; report the fully-uninformed neutral
	// default instead of dressing constants up as an estimate.
	if len(similarCases) == 0 && ctx.JustCause == nil && len(violations) == 0 {
		factors.ContractClarity = formatPercent(50)
		factors.EvidenceStrength = formatPercent(e.evidenceScore)
		factors.CaseTypeBaseRate = formatPercent(lookupBaseRate(ctx.CaseType))
		return prediction.WinEstimate{
			Percentage: 50,
			Confidence: prediction.TierLow,
			Factors:    factors,
		}
	}

	// Factor 1: similar-case grant rate. Skipped when no precedent exists.
	if len(similarCases) > 0 {
		granted := 0
		for _, rc := range similarCases {
			if rc.Case.Outcome == grievance.OutcomeGranted {
				granted++
			}
		}
		caseScore := float64(granted) / float64(len(similarCases)) * 100
		score += caseScore * weightSimilarCases
		totalWeight += weightSimilarCases
		factors.SimilarCases = formatPercent(caseScore)
	}

	// Factor 2: contract clarity. Always contributes; neutral 50 without
	// identified violations, otherwise stronger with each violation up to 90.
	contractScore := 50.0
	if len(violations) > 0 {
		contractScore = math.Min(90, 50+float64(len(violations))*10)
	}
	score += contractScore * weightContractClarity
	totalWeight += weightContractClarity
	factors.ContractClarity = formatPercent(contractScore)

	// Factor 3: just-cause pass rate. Skipped without test results.
	if ctx.JustCause != nil {
		justCauseScore := float64(ctx.JustCause.PassCount()) / justCauseTestCount * 100
		score += justCauseScore * weightJustCause
		totalWeight += weightJustCause
		factors.JustCause = formatPercent(justCauseScore)
	}

	// Factor 4: evidence strength. Flat default; always contributes.
	score += e.evidenceScore * weightEvidence
	totalWeight += weightEvidence
	factors.EvidenceStrength = formatPercent(e.evidenceScore)

	// Factor 5: case-type base rate. Always contributes.
	typeScore := lookupBaseRate(ctx.CaseType)
	score += typeScore * weightCaseTypeRate
	totalWeight += weightCaseTypeRate
	factors.CaseTypeBaseRate = formatPercent(typeScore)

	percentage := 50
	if totalWeight > 0 {
		percentage = int(math.Round(score / totalWeight))
	}
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	return prediction.WinEstimate{
		Percentage: percentage,
		Confidence: confidenceTier(totalWeight),
		Factors:    factors,
	}
}

// confidenceTier grades the estimate by accumulated factor weight, not by
// how extreme the score is.
func confidenceTier(totalWeight float64) prediction.ConfidenceTier {
	switch {
	case totalWeight >= 0.8:
		return prediction.TierHigh
	case totalWeight >= 0.5:
		return prediction.TierMedium
	default:
		return prediction.TierLow
	}
}

func lookupBaseRate(t grievance.CaseType) float64 {
	if rate, ok := baseRates[t]; ok {
		return rate
	}
	return defaultBaseRate
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
