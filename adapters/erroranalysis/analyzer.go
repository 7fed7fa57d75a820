package erroranalysis

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"steward/domain/core"
	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/ports"
)

const (
	// minSamplesForAnalysis gates root-cause analysis so patterns are
	// built from recurring failures, not one-offs.
	minSamplesForAnalysis = 10

	// commonFactorThreshold is the share of a pattern's samples a factor
	// must appear in to count as a common factor.
	commonFactorThreshold = 0.5

	maxCommonFactors    = 3
	maxRecommendations  = 3
	assumedPeriodVolume = 100
	highErrorRate       = 0.15
)

// Factor labels double as keys into the corrective-action catalog, so they
// must stay stable.
const (
	factorOverConfidence = "Over-confidence in incorrect prediction"
	factorWeakEvidence   = "Weak evidence supporting high confidence"
	factorMisclassified  = "Case type misclassification"
	factorNoPrecedents   = "No similar precedents found"
)

var correctiveActionCatalog = map[string][]string{
	factorWeakEvidence: {
		"Strengthen evidence evaluation criteria",
		"Add evidence quality scoring",
		"Implement evidence threshold validation",
	},
	factorMisclassified: {
		"Improve case type detection",
		"Add case type validation step",
		"Enhance training data for case classification",
	},
	factorNoPrecedents: {
		"Expand case database with more examples",
		"Improve similarity matching",
		"Add fallback analysis for unique cases",
	},
}

var actionImpact = map[string]float64{
	factorOverConfidence: 0.8,
	factorWeakEvidence:   0.7,
	factorMisclassified:  0.6,
	factorNoPrecedents:   0.5,
}

const defaultActionImpact = 0.5

type patternKey struct {
	errorType prediction.ErrorType
	caseType  grievance.CaseType
}

func (k patternKey) String() string {
	return fmt.Sprintf("%s_%s", k.errorType, k.caseType)
}

// ActionBundle pairs a root-cause pattern with its recommended remediations.
type ActionBundle struct {
	RootCause   prediction.RootCausePattern   `json:"root_cause"`
	Actions     []prediction.CorrectiveAction `json:"actions"`
	GeneratedAt core.Timestamp                `json:"generated_at"`
}

// Analyzer records mispredictions, classifies them, and aggregates
// recurring (error type, case type) failure modes into root-cause patterns
// with corrective actions.
type Analyzer struct {
	mu         sync.RWMutex
	history    []prediction.ErrorRecord
	patterns   map[patternKey][]prediction.ErrorRecord
	rootCauses map[patternKey]prediction.RootCausePattern
	actions    map[patternKey]ActionBundle
	clock      ports.Clock
}

// NewAnalyzer creates an empty error analyzer.
func NewAnalyzer(clock ports.Clock) *Analyzer {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Analyzer{
		patterns:   make(map[patternKey][]prediction.ErrorRecord),
		rootCauses: make(map[patternKey]prediction.RootCausePattern),
		actions:    make(map[patternKey]ActionBundle),
		clock:      clock,
	}
}

// RecordError classifies and stores one misprediction, refreshing the
// root-cause analysis for its pattern once enough samples accumulate.
func (a *Analyzer) RecordError(grievanceID core.GrievanceID, pred prediction.Prediction, actual grievance.Outcome, errCtx prediction.ErrorContext) prediction.ErrorRecord {
	factors, severity := analyzeFactors(pred, actual, errCtx)

	record := prediction.ErrorRecord{
		ID:                  core.ErrorID(core.NewID()),
		GrievanceID:         grievanceID,
		Prediction:          pred,
		ActualOutcome:       actual,
		ErrorType:           ClassifyError(pred.Outcome, actual),
		ContributingFactors: factors,
		Severity:            severity,
		Recommendations:     recommendationsFor(factors, errCtx.CaseType),
		Timestamp:           core.NewTimestamp(a.clock.Now()),
	}

	key := patternKey{errorType: record.ErrorType, caseType: caseTypeOrGeneral(pred.CaseType)}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, record)
	a.patterns[key] = append(a.patterns[key], record)

	if len(a.patterns[key]) >= minSamplesForAnalysis {
		a.refreshRootCause(key)
	}

	return record
}

// ClassifyError maps a predicted/actual outcome pair to an error type.
// A matching outcome still counts as an error here: the confidence was
// wrong enough that someone reported it.
func ClassifyError(predicted, actual grievance.Outcome) prediction.ErrorType {
	switch {
	case predicted == actual:
		return prediction.ErrorFalsePositiveConfidence
	case predicted == grievance.OutcomeGranted && actual == grievance.OutcomeDenied,
		predicted == grievance.OutcomeDenied && actual == grievance.OutcomeGranted:
		return prediction.ErrorOutcomeReversal
	case predicted == grievance.OutcomeGranted && actual == grievance.OutcomeSettled:
		return prediction.ErrorOverOptimistic
	case predicted == grievance.OutcomeDenied && actual == grievance.OutcomeSettled:
		return prediction.ErrorUnderConfident
	default:
		return prediction.ErrorOutcomeMismatch
	}
}

// analyzeFactors inspects the prediction context for known failure
// signatures. Severity only escalates as factors stack up.
func analyzeFactors(pred prediction.Prediction, actual grievance.Outcome, errCtx prediction.ErrorContext) ([]string, prediction.Severity) {
	var factors []string
	severity := prediction.SeverityLow

	if pred.Confidence > 0.8 && pred.Outcome != actual {
		factors = append(factors, factorOverConfidence)
		severity = escalate(severity, prediction.SeverityHigh)
	}
	if errCtx.EvidenceStrength == grievance.EvidenceLow && pred.Confidence > 0.7 {
		factors = append(factors, factorWeakEvidence)
		severity = escalate(severity, prediction.SeverityMedium)
	}
	if errCtx.CaseType != "" && pred.CaseType != errCtx.CaseType {
		factors = append(factors, factorMisclassified)
		severity = escalate(severity, prediction.SeverityMedium)
	}
	if errCtx.SimilarCasesFound == 0 && pred.Confidence > 0.6 {
		factors = append(factors, factorNoPrecedents)
	}

	return factors, severity
}

var severityRank = map[prediction.Severity]int{
	prediction.SeverityLow:      0,
	prediction.SeverityMedium:   1,
	prediction.SeverityHigh:     2,
	prediction.SeverityCritical: 3,
}

func escalate(current, candidate prediction.Severity) prediction.Severity {
	if severityRank[candidate] > severityRank[current] {
		return candidate
	}
	return current
}

func recommendationsFor(factors []string, caseType grievance.CaseType) []string {
	var recs []string
	seen := make(map[string]struct{})
	for _, factor := range factors {
		for _, action := range actionsForFactor(factor, caseTypeOrGeneral(caseType)) {
			if _, dup := seen[action]; dup {
				continue
			}
			seen[action] = struct{}{}
			recs = append(recs, action)
		}
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func actionsForFactor(factor string, caseType grievance.CaseType) []string {
	if factor == factorOverConfidence {
		return []string{
			fmt.Sprintf("Implement confidence calibration for %s cases", caseType),
			"Add ensemble prediction validation",
			"Review confidence scoring",
		}
	}
	if actions, ok := correctiveActionCatalog[factor]; ok {
		return actions
	}
	return []string{"Review and improve analysis methodology"}
}

// refreshRootCause rebuilds the root-cause pattern and corrective actions
// for key. Caller holds the write lock.
func (a *Analyzer) refreshRootCause(key patternKey) {
	records := a.patterns[key]

	factorCounts := make(map[string]int)
	for _, r := range records {
		for _, f := range r.ContributingFactors {
			factorCounts[f]++
		}
	}

	factorNames := make([]string, 0, len(factorCounts))
	for f := range factorCounts {
		factorNames = append(factorNames, f)
	}
	sort.Slice(factorNames, func(i, j int) bool {
		if factorCounts[factorNames[i]] != factorCounts[factorNames[j]] {
			return factorCounts[factorNames[i]] > factorCounts[factorNames[j]]
		}
		return factorNames[i] < factorNames[j]
	})

	var common []prediction.FactorFrequency
	for _, f := range factorNames {
		count := factorCounts[f]
		if float64(count) < float64(len(records))*commonFactorThreshold {
			continue
		}
		common = append(common, prediction.FactorFrequency{
			Factor:      f,
			Frequency:   float64(count) / float64(len(records)),
			Occurrences: count,
		})
		if len(common) == maxCommonFactors {
			break
		}
	}

	rootCause := prediction.RootCausePattern{
		ErrorType:     key.errorType,
		CaseType:      key.caseType,
		CommonFactors: common,
		SampleSize:    len(records),
		Severity:      patternSeverity(records),
		AnalyzedAt:    core.NewTimestamp(a.clock.Now()),
	}
	a.rootCauses[key] = rootCause

	actions := make([]prediction.CorrectiveAction, 0, len(common))
	for _, ff := range common {
		actions = append(actions, prediction.CorrectiveAction{
			Factor:          ff.Factor,
			Frequency:       ff.Frequency,
			Actions:         actionsForFactor(ff.Factor, key.caseType),
			Priority:        actionPriority(ff.Frequency),
			EstimatedImpact: impactFor(ff.Factor),
		})
	}
	a.actions[key] = ActionBundle{
		RootCause:   rootCause,
		Actions:     actions,
		GeneratedAt: core.NewTimestamp(a.clock.Now()),
	}
}

// patternSeverity grades a pattern by the share of high-severity errors.
func patternSeverity(records []prediction.ErrorRecord) prediction.Severity {
	high := 0
	for _, r := range records {
		if r.Severity == prediction.SeverityHigh {
			high++
		}
	}
	ratio := float64(high) / float64(len(records))
	switch {
	case ratio > 0.7:
		return prediction.SeverityCritical
	case ratio > 0.4:
		return prediction.SeverityHigh
	case ratio > 0.2:
		return prediction.SeverityMedium
	default:
		return prediction.SeverityLow
	}
}

func actionPriority(frequency float64) string {
	switch {
	case frequency > 0.8:
		return "high"
	case frequency > 0.6:
		return "medium"
	default:
		return "low"
	}
}

func impactFor(factor string) float64 {
	if impact, ok := actionImpact[factor]; ok {
		return impact
	}
	return defaultActionImpact
}

func caseTypeOrGeneral(t grievance.CaseType) grievance.CaseType {
	if t == "" {
		return grievance.CaseGeneral
	}
	return t
}

// Report is a windowed summary of recorded errors.
type Report struct {
	Period            string                                 `json:"period"`
	TotalErrors       int                                    `json:"total_errors"`
	ErrorBreakdown    map[prediction.ErrorType]int           `json:"error_breakdown"`
	RootCauses        map[string]prediction.RootCausePattern `json:"root_causes"`
	CorrectiveActions map[string]ActionBundle                `json:"corrective_actions"`
	Recommendations   []string                               `json:"recommendations"`
}

// Reporting over a window keeps stale failure modes from dominating after
// the underlying issue is fixed.
func (a *Analyzer) Report(window time.Duration) Report {
	cutoff := a.clock.Now().Add(-window)

	a.mu.RLock()
	defer a.mu.RUnlock()

	report := Report{
		Period:            window.String(),
		ErrorBreakdown:    make(map[prediction.ErrorType]int),
		RootCauses:        make(map[string]prediction.RootCausePattern),
		CorrectiveActions: make(map[string]ActionBundle),
	}

	for _, r := range a.history {
		if !r.Timestamp.Time().After(cutoff) {
			continue
		}
		report.TotalErrors++
		report.ErrorBreakdown[r.ErrorType]++
	}
	for key, rc := range a.rootCauses {
		if rc.AnalyzedAt.Time().After(cutoff) {
			report.RootCauses[key.String()] = rc
		}
	}
	for key, bundle := range a.actions {
		if bundle.GeneratedAt.Time().After(cutoff) {
			report.CorrectiveActions[key.String()] = bundle
		}
	}

	if float64(report.TotalErrors)/assumedPeriodVolume > highErrorRate {
		report.Recommendations = append(report.Recommendations,
			"Error rate exceeds threshold; review prediction pipeline end to end")
	}
	for _, rc := range report.RootCauses {
		if rc.Severity == prediction.SeverityCritical {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Critical failure pattern in %s %s errors requires immediate attention", rc.CaseType, rc.ErrorType))
		}
	}
	sort.Strings(report.Recommendations)

	return report
}

// History returns a copy of every recorded error, oldest first.
func (a *Analyzer) History() []prediction.ErrorRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]prediction.ErrorRecord, len(a.history))
	copy(out, a.history)
	return out
}

// RootCause returns the analyzed pattern for an (error type, case type)
// pair, if enough samples have accumulated.
func (a *Analyzer) RootCause(errorType prediction.ErrorType, caseType grievance.CaseType) (prediction.RootCausePattern, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rc, ok := a.rootCauses[patternKey{errorType: errorType, caseType: caseTypeOrGeneral(caseType)}]
	return rc, ok
}
