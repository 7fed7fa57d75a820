package extract

import (
	"testing"

	"steward/domain/grievance"

	"github.com/stretchr/testify/assert"
)

func TestExtract_TerminationScenario(t *testing.T) {
	e := New()
	text := "Employee was terminated for a single 5-minute tardiness incident with no prior written warnings"

	got := e.Extract(text, "")

	assert.Equal(t, grievance.CaseTermination, got.CaseType)
	assert.Equal(t, grievance.ViolationProgressiveDiscipline, got.ViolationType)
	assert.True(t, got.EvidenceStrength.AtLeast(grievance.EvidenceMedium))
}

func TestExtract_CaseTypeDetection(t *testing.T) {
	e := New()
	tests := []struct {
		name string
		text string
		want grievance.CaseType
	}{
		{"termination", "management fired the grievant on monday", grievance.CaseTermination},
		{"discipline", "grievant was suspended for three days", grievance.CaseDiscipline},
		{"overtime", "worked overtime every week without compensation", grievance.CaseOvertime},
		{"harassment", "supervisor continued to harass the grievant", grievance.CaseHarassment},
		{"safety", "the machine guard was removed creating a hazard", grievance.CaseSafety},
		{"seniority", "junior employee was recalled ahead of senior staff, violating seniority", grievance.CaseSeniority},
		{"weingarten", "denied a union representative during the meeting", grievance.CaseWeingarten},
		{"contract", "this is a clear contract violation by the employer", grievance.CaseContract},
		{"general fallback", "the grievant disagrees with the schedule change", grievance.CaseGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.text, "")
			assert.Equal(t, tt.want, got.CaseType)
		})
	}
}

func TestExtract_PriorityOrderBreaksTies(t *testing.T) {
	e := New()
	// Matches both termination ("discharged") and safety ("unsafe");
	// termination is declared first so it wins.
	got := e.Extract("discharged after reporting unsafe conditions", "")
	assert.Equal(t, grievance.CaseTermination, got.CaseType)
}

func TestExtract_HintedTypeWins(t *testing.T) {
	e := New()
	got := e.Extract("employee was fired", grievance.CaseSafety)
	assert.Equal(t, grievance.CaseSafety, got.CaseType)
}

func TestExtract_InvalidHintFallsBackToDetection(t *testing.T) {
	e := New()
	got := e.Extract("employee was fired", grievance.CaseType("bogus"))
	assert.Equal(t, grievance.CaseTermination, got.CaseType)
}

func TestExtract_ViolationTypeMostMatchesWins(t *testing.T) {
	e := New()
	// Two FLSA hits (unpaid, overtime) versus one progressive-discipline
	// hit (no ... warning).
	got := e.Extract("unpaid overtime and no written warning was given", "")
	assert.Equal(t, grievance.ViolationFLSA, got.ViolationType)
}

func TestExtract_ViolationTypeDefaultsToGeneral(t *testing.T) {
	e := New()
	got := e.Extract("the schedule was changed without notice", "")
	assert.Equal(t, grievance.ViolationGeneral, got.ViolationType)
}

func TestExtract_ContractArticles(t *testing.T) {
	e := New()
	got := e.Extract("management violated Article 12.3 and ARTICLE 7 of the agreement", "")
	assert.Equal(t, []string{"12.3", "7"}, got.ContractArticles)
}

func TestExtract_ContractArticlesDeduplicated(t *testing.T) {
	e := New()
	got := e.Extract("article 5 was ignored; article 5 requires notice", "")
	assert.Equal(t, []string{"5"}, got.ContractArticles)
}

func TestExtract_ProceduralIssues(t *testing.T) {
	e := New()
	got := e.Extract("there was no investigation and the work was off the clock", "")
	assert.Contains(t, got.ProceduralIssues, "no_investigation")
	assert.Contains(t, got.ProceduralIssues, "uncompensated_work")
}

func TestExtract_EvidenceStrength(t *testing.T) {
	e := New()
	tests := []struct {
		name string
		text string
		want grievance.EvidenceStrength
	}{
		{"no markers", "the grievant disagrees", grievance.EvidenceLow},
		{"witness marker", "a witness saw the incident", grievance.EvidenceMedium},
		{"written marker", "a written statement exists", grievance.EvidenceHigh},
		{"article reference", "article 4 was violated", grievance.EvidenceHigh},
		{"two procedural issues", "no investigation was done and the work was unpaid", grievance.EvidenceHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.text, "")
			assert.Equal(t, tt.want, got.EvidenceStrength)
		})
	}
}

func TestExtract_EvidenceUpgradeIsMonotonic(t *testing.T) {
	e := New()
	// Medium marker plus high trigger must land on high, never slip back.
	got := e.Extract("witness statements and a written warning in the record, article 3", "")
	assert.Equal(t, grievance.EvidenceHigh, got.EvidenceStrength)
}

func TestExtract_KeepsOriginalTextAsDescription(t *testing.T) {
	e := New()
	text := "Employee was Terminated"
	got := e.Extract(text, "")
	assert.Equal(t, text, got.Description)
}
