package extract

import (
	"regexp"
	"strings"

	"steward/domain/grievance"
)

// caseTypeRule is one keyword family. Families are evaluated in declaration
// order and the first match wins; the order is load-bearing because real
// grievance texts routinely match several families.
type caseTypeRule struct {
	caseType grievance.CaseType
	keywords []string
}

var caseTypeRules = []caseTypeRule{
	{grievance.CaseTermination, []string{"fire", "terminat", "discharge", "dismiss"}},
	{grievance.CaseDiscipline, []string{"suspend", "reprimand", "write-up", "written warning"}},
	{grievance.CaseOvertime, []string{"overtime", "hours worked", "unpaid", "wage", "pay"}},
	{grievance.CaseHarassment, []string{"harass", "hostile", "bully", "intimidat"}},
	{grievance.CaseSafety, []string{"safety", "hazard", "unsafe", "danger", "injury"}},
	{grievance.CaseSeniority, []string{"seniority", "bumping", "layoff", "recall"}},
	{grievance.CaseWeingarten, []string{"weingarten", "union representative", "representation", "investigatory interview"}},
	{grievance.CaseContract, []string{"contract violation", "collective bargaining", "cba"}},
}

// violationRule is one violation pattern family. The family with the most
// regex matches wins; ties break toward the first declared.
type violationRule struct {
	violation grievance.ViolationType
	pattern   *regexp.Regexp
}

var violationRules = []violationRule{
	{grievance.ViolationProgressiveDiscipline, regexp.MustCompile(`(?i)no.*warning|first.*offense|clean.*record`)},
	{grievance.ViolationDisparateTreatment, regexp.MustCompile(`(?i)others.*same|selective|everyone.*else`)},
	{grievance.ViolationFLSA, regexp.MustCompile(`(?i)off.*clock|unpaid|overtime|hours.*worked`)},
	{grievance.ViolationInvestigation, regexp.MustCompile(`(?i)no.*investigation|not.*interview|based.*complaint`)},
	{grievance.ViolationSafetyHazard, regexp.MustCompile(`(?i)unsafe|dangerous|hazard|injury|accident`)},
}

var articlePattern = regexp.MustCompile(`(?i)article\s*(\d+(?:\.\d+)?)`)

// proceduralChecks map text markers to procedural-issue tags. Every check
// runs independently; any subset may fire.
var proceduralChecks = []struct {
	tag     string
	markers []string
}{
	{"no_prior_discipline", []string{"no warning", "no discipline", "no prior"}},
	{"no_investigation", []string{"no investigation", "without investigation"}},
	{"selective_enforcement", []string{"others did", "same thing", "only one disciplined"}},
	{"uncompensated_work", []string{"off clock", "off the clock", "unpaid"}},
	{"denied_representation", []string{"denied representation", "without a union rep", "refused steward"}},
}

var evidenceMediumMarkers = []string{"document", "record", "witness"}

// Extractor derives structured feature records from raw grievance text via
// keyword and pattern heuristics. Pure: no state, no I/O.
type Extractor struct{}

// New creates a feature extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract derives a FeatureRecord from text. A valid hinted case type
// short-circuits detection; everything else is always computed from text.
func (e *Extractor) Extract(text string, hintedType grievance.CaseType) grievance.FeatureRecord {
	lower := strings.ToLower(text)

	caseType := hintedType
	if !caseType.IsValid() {
		caseType = detectCaseType(lower)
	}

	articles := extractArticles(lower)
	issues := extractProceduralIssues(lower)

	return grievance.FeatureRecord{
		CaseType:         caseType,
		ViolationType:    detectViolationType(lower),
		ContractArticles: articles,
		ProceduralIssues: issues,
		EvidenceStrength: assessEvidence(lower, articles, issues),
		Description:      text,
	}
}

func detectCaseType(lower string) grievance.CaseType {
	for _, rule := range caseTypeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.caseType
			}
		}
	}
	return grievance.CaseGeneral
}

func detectViolationType(lower string) grievance.ViolationType {
	best := grievance.ViolationGeneral
	bestCount := 0
	for _, rule := range violationRules {
		count := len(rule.pattern.FindAllString(lower, -1))
		if count > bestCount {
			bestCount = count
			best = rule.violation
		}
	}
	return best
}

func extractArticles(lower string) []string {
	matches := articlePattern.FindAllStringSubmatch(lower, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	articles := make([]string, 0, len(matches))
	for _, m := range matches {
		normalized := strings.ToLower(m[1])
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		articles = append(articles, normalized)
	}
	return articles
}

func extractProceduralIssues(lower string) []string {
	var issues []string
	for _, check := range proceduralChecks {
		for _, marker := range check.markers {
			if strings.Contains(lower, marker) {
				issues = append(issues, check.tag)
				break
			}
		}
	}
	return issues
}

// assessEvidence starts at low and only upgrades, never downgrades.
func assessEvidence(lower string, articles, issues []string) grievance.EvidenceStrength {
	strength := grievance.EvidenceLow
	for _, marker := range evidenceMediumMarkers {
		if strings.Contains(lower, marker) {
			strength = strength.Upgrade(grievance.EvidenceMedium)
			break
		}
	}
	if strings.Contains(lower, "written") || len(articles) >= 1 || len(issues) >= 2 {
		strength = strength.Upgrade(grievance.EvidenceHigh)
	}
	return strength
}
