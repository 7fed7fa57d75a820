package prediction

import (
	"steward/domain/core"
	"steward/domain/grievance"
)

// Source tags where a prediction came from.
type Source string

const (
	SourceBase       Source = "base"
	SourceEnsemble   Source = "ensemble"
	SourceCalibrated Source = "calibrated"
)

// Prediction is a single model's (or the engine's) verdict on a grievance.
// Confidence is always a probability in [0,1] inside the engine; only the
// WinEstimate boundary speaks in percentages.
type Prediction struct {
	Outcome            grievance.Outcome  `json:"outcome"`
	Confidence         float64            `json:"confidence"`
	CaseType           grievance.CaseType `json:"case_type"`
	SimilarCasesFound  int                `json:"similar_cases_found"`
	Source             Source             `json:"source"`
	Analysis           string             `json:"analysis,omitempty"`
	AlternativeOutcome grievance.Outcome  `json:"alternative_outcome,omitempty"`
	CalibrationApplied bool               `json:"calibration_applied,omitempty"`
	FeedbackApplied    *FeedbackEffect    `json:"feedback_applied,omitempty"`
}

// FeedbackEffect records how learned corrections changed a prediction.
type FeedbackEffect struct {
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`
	BasedOn              int     `json:"based_on"`
}

// ConfidenceTier grades how much real data backed an estimate.
type ConfidenceTier string

const (
	TierLow    ConfidenceTier = "low"
	TierMedium ConfidenceTier = "medium"
	TierHigh   ConfidenceTier = "high"
)

// FactorBreakdown gives the per-factor inputs to a win estimate, one
// formatted percent string per factor ("N/A" when a factor had no data).
type FactorBreakdown struct {
	SimilarCases     string `json:"similar_cases"`
	ContractClarity  string `json:"contract_clarity"`
	JustCause        string `json:"just_cause"`
	EvidenceStrength string `json:"evidence_strength"`
	CaseTypeBaseRate string `json:"case_type_base_rate"`
}

// WinEstimate is the bounded output of the multi-factor estimator.
type WinEstimate struct {
	Percentage int             `json:"percentage"` // 0-100
	Confidence ConfidenceTier  `json:"confidence"`
	Factors    FactorBreakdown `json:"factors"`
}

// RankedCase pairs a historical case with its similarity to the query.
type RankedCase struct {
	Case       grievance.HistoricalCase `json:"case"`
	Similarity float64                  `json:"similarity"` // 0-100
}

// CalibrationProfile holds per-case-type post-hoc calibration parameters.
type CalibrationProfile struct {
	CaseType         grievance.CaseType `json:"case_type"`
	Temperature      float64            `json:"temperature"`
	PlattWeights     [2]float64         `json:"platt_weights"` // intercept, slope
	LastCalibrated   core.Timestamp     `json:"last_calibrated"`
	SampleSize       int                `json:"sample_size"`
	BaselineAccuracy float64            `json:"baseline_accuracy"`
}

// CorrectionType classifies one user-correction delta.
type CorrectionType string

const (
	CorrectionConfidence CorrectionType = "confidence_adjustment"
	CorrectionOutcome    CorrectionType = "outcome_correction"
	CorrectionAnalysis   CorrectionType = "analysis_refinement"
)

// Correction is one typed delta between an original prediction and a
// user correction.
type Correction struct {
	Type                CorrectionType    `json:"type"`
	OriginalConfidence  float64           `json:"original_confidence,omitempty"`
	CorrectedConfidence float64           `json:"corrected_confidence,omitempty"`
	Difference          float64           `json:"difference,omitempty"`
	OriginalOutcome     grievance.Outcome `json:"original_outcome,omitempty"`
	CorrectedOutcome    grievance.Outcome `json:"corrected_outcome,omitempty"`
	AddedWords          []string          `json:"added_words,omitempty"`
	RemovedWords        []string          `json:"removed_words,omitempty"`
}

// FeedbackType tags the flavor of a feedback submission.
type FeedbackType string

const (
	FeedbackCorrection   FeedbackType = "correction"
	FeedbackConfirmation FeedbackType = "confirmation"
	FeedbackPartial      FeedbackType = "partial"
)

// FeedbackEntry is one recorded user correction. Append-only; refers to the
// grievance by id, never by object reference.
type FeedbackEntry struct {
	ID                 core.FeedbackID  `json:"id"`
	GrievanceID        core.GrievanceID `json:"grievance_id"`
	OriginalPrediction Prediction       `json:"original_prediction"`
	UserCorrection     Prediction       `json:"user_correction"`
	FeedbackType       FeedbackType     `json:"feedback_type"`
	Corrections        []Correction     `json:"corrections"`
	Timestamp          core.Timestamp   `json:"timestamp"`
}

// OutcomeRecord tracks how a grievance actually resolved.
type OutcomeRecord struct {
	GrievanceID      core.GrievanceID  `json:"grievance_id"`
	ActualOutcome    grievance.Outcome `json:"actual_outcome"`
	ResolutionDate   string            `json:"resolution_date,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	RecordedAt       core.Timestamp    `json:"recorded_at"`
	FeedbackProvided bool              `json:"feedback_provided"`
}

// ErrorType classifies a prediction/outcome mismatch.
type ErrorType string

const (
	ErrorFalsePositiveConfidence ErrorType = "false_positive_confidence"
	ErrorOutcomeReversal         ErrorType = "outcome_reversal"
	ErrorOverOptimistic          ErrorType = "over_optimistic"
	ErrorUnderConfident          ErrorType = "under_confident"
	ErrorOutcomeMismatch         ErrorType = "outcome_mismatch"
)

// Severity grades an error or error pattern.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorContext carries the structured facts about the prediction's inputs
// that the analyzer's heuristics inspect.
type ErrorContext struct {
	CaseType          grievance.CaseType         `json:"case_type,omitempty"`
	EvidenceStrength  grievance.EvidenceStrength `json:"evidence_strength,omitempty"`
	SimilarCasesFound int                        `json:"similar_cases_found"`
}

// ErrorRecord is one observed misprediction with its analysis.
type ErrorRecord struct {
	ID                  core.ErrorID      `json:"id"`
	GrievanceID         core.GrievanceID  `json:"grievance_id"`
	Prediction          Prediction        `json:"prediction"`
	ActualOutcome       grievance.Outcome `json:"actual_outcome"`
	ErrorType           ErrorType         `json:"error_type"`
	ContributingFactors []string          `json:"contributing_factors"`
	Severity            Severity          `json:"severity"`
	Recommendations     []string          `json:"recommendations,omitempty"`
	Timestamp           core.Timestamp    `json:"timestamp"`
}

// FactorFrequency reports how often a contributing factor recurs inside a
// root-cause pattern.
type FactorFrequency struct {
	Factor      string  `json:"factor"`
	Frequency   float64 `json:"frequency"` // fraction of pattern samples
	Occurrences int     `json:"occurrences"`
}

// RootCausePattern aggregates a recurring (errorType, caseType) failure mode.
type RootCausePattern struct {
	ErrorType     ErrorType          `json:"error_type"`
	CaseType      grievance.CaseType `json:"case_type"`
	CommonFactors []FactorFrequency  `json:"common_factors"`
	SampleSize    int                `json:"sample_size"`
	Severity      Severity           `json:"severity"`
	AnalyzedAt    core.Timestamp     `json:"analyzed_at"`
}

// CorrectiveAction is one recommended remediation bundle for a factor.
type CorrectiveAction struct {
	Factor          string   `json:"factor"`
	Frequency       float64  `json:"frequency"`
	Actions         []string `json:"actions"`
	Priority        string   `json:"priority"`
	EstimatedImpact float64  `json:"estimated_impact"`
}
