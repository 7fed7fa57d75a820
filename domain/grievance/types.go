package grievance

import (
	"steward/domain/core"
)

// CaseType is the closed set of grievance subject-matter categories.
type CaseType string

const (
	CaseTermination CaseType = "termination"
	CaseDiscipline  CaseType = "discipline"
	CaseOvertime    CaseType = "overtime"
	CaseHarassment  CaseType = "harassment"
	CaseSafety      CaseType = "safety"
	CaseSeniority   CaseType = "seniority"
	CaseWeingarten  CaseType = "weingarten"
	CaseContract    CaseType = "contract"
	CaseGeneral     CaseType = "general"
)

// AllCaseTypes lists every valid case type, in declaration order.
func AllCaseTypes() []CaseType {
	return []CaseType{
		CaseTermination, CaseDiscipline, CaseOvertime, CaseHarassment,
		CaseSafety, CaseSeniority, CaseWeingarten, CaseContract, CaseGeneral,
	}
}

// IsValid reports whether t is a known case type.
func (t CaseType) IsValid() bool {
	for _, known := range AllCaseTypes() {
		if t == known {
			return true
		}
	}
	return false
}

func (t CaseType) String() string { return string(t) }

// Outcome is the resolution of a grievance case.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
	OutcomeSettled Outcome = "settled"
)

func (o Outcome) String() string { return string(o) }

// IsValid reports whether o is a known outcome.
func (o Outcome) IsValid() bool {
	return o == OutcomeGranted || o == OutcomeDenied || o == OutcomeSettled
}

// EvidenceStrength is an ordered tier of evidentiary support.
type EvidenceStrength string

const (
	EvidenceLow    EvidenceStrength = "low"
	EvidenceMedium EvidenceStrength = "medium"
	EvidenceHigh   EvidenceStrength = "high"
)

// rank orders evidence tiers so upgrades can be monotonic.
func (e EvidenceStrength) rank() int {
	switch e {
	case EvidenceHigh:
		return 2
	case EvidenceMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether e is the same tier as other or stronger.
func (e EvidenceStrength) AtLeast(other EvidenceStrength) bool {
	return e.rank() >= other.rank()
}

// Upgrade returns the stronger of e and target. Never downgrades.
func (e EvidenceStrength) Upgrade(target EvidenceStrength) EvidenceStrength {
	if target.rank() > e.rank() {
		return target
	}
	return e
}

// ViolationType is a heuristic tag for the contract violation family.
// Open-ended: new values are added by pattern extraction, so this stays a
// validated string rather than a closed enum.
type ViolationType string

const (
	ViolationProgressiveDiscipline ViolationType = "progressive_discipline"
	ViolationDisparateTreatment    ViolationType = "disparate_treatment"
	ViolationFLSA                  ViolationType = "flsa_violation"
	ViolationInvestigation         ViolationType = "investigation_required"
	ViolationSafetyHazard          ViolationType = "safety_hazard"
	ViolationGeneral               ViolationType = "general"
)

func (v ViolationType) String() string { return string(v) }

// FeatureRecord is the structured summary derived from one grievance text.
// Computed on demand and immutable; safe to cache by text fingerprint.
type FeatureRecord struct {
	CaseType         CaseType         `json:"case_type"`
	ViolationType    ViolationType    `json:"violation_type"`
	ContractArticles []string         `json:"contract_articles"`
	ProceduralIssues []string         `json:"procedural_issues"`
	EvidenceStrength EvidenceStrength `json:"evidence_strength"`
	JustCauseTests   []int            `json:"just_cause_tests,omitempty"` // 1-7, Seven Tests of Just Cause
	Description      string           `json:"description,omitempty"`
	Outcome          Outcome          `json:"outcome,omitempty"` // Known only for historical cases
}

// HistoricalCase is a stored precedent with its provider-tagged embedding.
// Embeddings from different providers must never be compared directly.
type HistoricalCase struct {
	ID        core.CaseID    `json:"id" db:"id"`
	Features  FeatureRecord  `json:"features" db:"-"`
	Outcome   Outcome        `json:"outcome" db:"outcome"`
	Embedding []float64      `json:"embedding,omitempty" db:"-"`
	Provider  string         `json:"provider,omitempty" db:"provider"`
	CreatedAt core.Timestamp `json:"created_at" db:"created_at"`
}

// Violation is one contract violation identified during analysis.
type Violation struct {
	Article     string `json:"article"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
}

// TestResult is the verdict on one just-cause test.
type TestResult string

const (
	TestPass    TestResult = "pass"
	TestFail    TestResult = "fail"
	TestUnknown TestResult = "unknown"
)

// JustCauseResults holds the Seven Tests of Just Cause.
type JustCauseResults struct {
	Notice            TestResult `json:"notice"`
	ReasonableRule    TestResult `json:"reasonable_rule"`
	Investigation     TestResult `json:"investigation"`
	FairInvestigation TestResult `json:"fair_investigation"`
	Proof             TestResult `json:"proof"`
	EqualTreatment    TestResult `json:"equal_treatment"`
	Penalty           TestResult `json:"penalty"`
}

// Tests returns all seven results in canonical order.
func (j JustCauseResults) Tests() []TestResult {
	return []TestResult{
		j.Notice, j.ReasonableRule, j.Investigation, j.FairInvestigation,
		j.Proof, j.EqualTreatment, j.Penalty,
	}
}

// PassCount returns how many of the seven tests passed.
func (j JustCauseResults) PassCount() int {
	n := 0
	for _, t := range j.Tests() {
		if t == TestPass {
			n++
		}
	}
	return n
}

// Context carries the structured inputs to a win-probability estimate.
type Context struct {
	CaseType  CaseType          `json:"case_type"`
	JustCause *JustCauseResults `json:"just_cause,omitempty"`
}
