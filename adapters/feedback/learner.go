package feedback

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"steward/domain/core"
	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/ports"

	"github.com/montanaflynn/stats"
)

// minCorrectionThreshold is the minimum corrections of one kind for a case
// type before the learner starts adjusting predictions.
const minCorrectionThreshold = 3

// adjustmentDampening scales learned confidence deltas so feedback nudges
// predictions instead of whipsawing them.
const adjustmentDampening = 0.1

// outcomeSuggestionAgreement is the supermajority of corrections that must
// agree before an alternative outcome is surfaced.
const outcomeSuggestionAgreement = 0.6

var wordSplitter = regexp.MustCompile(`\W+`)

type patternKey struct {
	correctionType prediction.CorrectionType
	caseType       grievance.CaseType
}

// learnedPattern is one correction with the prediction context it was made
// in. Effectiveness tracks how often predictions in this context later
// proved right, updated as actual outcomes arrive.
type learnedPattern struct {
	correction         prediction.Correction
	originalOutcome    grievance.Outcome
	originalConfidence float64
	caseType           grievance.CaseType
	recordedAt         core.Timestamp
	effectiveness      float64
}

// Learner accumulates user corrections to predictions and, once a pattern
// recurs often enough, applies dampened adjustments to future predictions
// for the same case type.
type Learner struct {
	mu       sync.RWMutex
	feedback map[core.GrievanceID][]prediction.FeedbackEntry
	history  []prediction.FeedbackEntry
	patterns map[patternKey][]*learnedPattern
	outcomes map[core.GrievanceID]prediction.OutcomeRecord
	clock    ports.Clock
}

// NewLearner creates an empty feedback learner.
func NewLearner(clock ports.Clock) *Learner {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Learner{
		feedback: make(map[core.GrievanceID][]prediction.FeedbackEntry),
		patterns: make(map[patternKey][]*learnedPattern),
		outcomes: make(map[core.GrievanceID]prediction.OutcomeRecord),
		clock:    clock,
	}
}

// RecordFeedback stores one user correction against a prediction and feeds
// the extracted deltas into the learning patterns.
func (l *Learner) RecordFeedback(grievanceID core.GrievanceID, original, corrected prediction.Prediction, feedbackType prediction.FeedbackType) (prediction.FeedbackEntry, error) {
	if grievanceID == "" {
		return prediction.FeedbackEntry{}, fmt.Errorf("%w: missing grievance id", core.ErrInvalidFeedback)
	}
	switch feedbackType {
	case prediction.FeedbackCorrection, prediction.FeedbackConfirmation, prediction.FeedbackPartial:
	case "":
		feedbackType = prediction.FeedbackCorrection
	default:
		return prediction.FeedbackEntry{}, fmt.Errorf("%w: unknown feedback type %q", core.ErrInvalidFeedback, feedbackType)
	}

	entry := prediction.FeedbackEntry{
		ID:                 core.FeedbackID(core.NewID()),
		GrievanceID:        grievanceID,
		OriginalPrediction: original,
		UserCorrection:     corrected,
		FeedbackType:       feedbackType,
		Corrections:        ExtractCorrections(original, corrected),
		Timestamp:          core.NewTimestamp(l.clock.Now()),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.feedback[grievanceID] = append(l.feedback[grievanceID], entry)
	l.history = append(l.history, entry)

	caseType := original.CaseType
	if caseType == "" {
		caseType = grievance.CaseGeneral
	}
	for _, c := range entry.Corrections {
		key := patternKey{correctionType: c.Type, caseType: caseType}
		l.patterns[key] = append(l.patterns[key], &learnedPattern{
			correction:         c,
			originalOutcome:    original.Outcome,
			originalConfidence: original.Confidence,
			caseType:           caseType,
			recordedAt:         entry.Timestamp,
		})
	}

	return entry, nil
}

// ExtractCorrections diffs a prediction against its user correction into
// typed deltas. Analysis text is compared word by word, ignoring case and
// words of three characters or fewer.
func ExtractCorrections(original, corrected prediction.Prediction) []prediction.Correction {
	var corrections []prediction.Correction

	if original.Confidence != corrected.Confidence {
		corrections = append(corrections, prediction.Correction{
			Type:                prediction.CorrectionConfidence,
			OriginalConfidence:  original.Confidence,
			CorrectedConfidence: corrected.Confidence,
			Difference:          corrected.Confidence - original.Confidence,
		})
	}

	if original.Outcome != corrected.Outcome {
		corrections = append(corrections, prediction.Correction{
			Type:             prediction.CorrectionOutcome,
			OriginalOutcome:  original.Outcome,
			CorrectedOutcome: corrected.Outcome,
		})
	}

	if original.Analysis != "" && corrected.Analysis != "" {
		added, removed := diffWords(original.Analysis, corrected.Analysis)
		if len(added) > 0 || len(removed) > 0 {
			corrections = append(corrections, prediction.Correction{
				Type:         prediction.CorrectionAnalysis,
				AddedWords:   added,
				RemovedWords: removed,
			})
		}
	}

	return corrections
}

func diffWords(original, corrected string) (added, removed []string) {
	origWords := significantWords(original)
	corrWords := significantWords(corrected)

	origSet := toSet(origWords)
	corrSet := toSet(corrWords)

	for _, w := range corrWords {
		if _, ok := origSet[w]; !ok {
			added = append(added, w)
		}
	}
	for _, w := range origWords {
		if _, ok := corrSet[w]; !ok {
			removed = append(removed, w)
		}
	}
	return added, removed
}

func significantWords(text string) []string {
	var words []string
	seen := make(map[string]struct{})
	for _, w := range wordSplitter.Split(strings.ToLower(text), -1) {
		if len(w) <= 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ApplyLearnedCorrections returns pred with any sufficiently-supported
// learned adjustments applied. Confidence patterns must match the exact
// original confidence; outcome suggestions require a supermajority of
// high-confidence corrections and never overwrite the outcome, only set
// AlternativeOutcome.
func (l *Learner) ApplyLearnedCorrections(pred prediction.Prediction) prediction.Prediction {
	caseType := pred.CaseType
	if caseType == "" {
		caseType = grievance.CaseGeneral
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	adjusted := pred

	confKey := patternKey{correctionType: prediction.CorrectionConfidence, caseType: caseType}
	if patterns := l.patterns[confKey]; len(patterns) >= minCorrectionThreshold {
		var diffs []float64
		for _, p := range patterns {
			if p.originalConfidence == pred.Confidence {
				diffs = append(diffs, p.correction.Difference)
			}
		}
		if len(diffs) > 0 {
			avg, err := stats.Mean(diffs)
			if err == nil {
				adjustment := avg * adjustmentDampening
				adjusted.Confidence = clamp(pred.Confidence+adjustment, 0.01, 0.99)
				adjusted.FeedbackApplied = &prediction.FeedbackEffect{
					ConfidenceAdjustment: adjustment,
					BasedOn:              len(diffs),
				}
			}
		}
	}

	outcomeKey := patternKey{correctionType: prediction.CorrectionOutcome, caseType: caseType}
	if patterns := l.patterns[outcomeKey]; len(patterns) >= minCorrectionThreshold {
		var matching []*learnedPattern
		for _, p := range patterns {
			if p.originalOutcome == pred.Outcome && p.originalConfidence > 0.7 {
				matching = append(matching, p)
			}
		}
		if len(matching) >= minCorrectionThreshold {
			if alt, ok := majorityCorrection(matching); ok {
				adjusted.AlternativeOutcome = alt
			}
		}
	}

	return adjusted
}

// majorityCorrection returns the corrected outcome backed by more than the
// supermajority share of matching corrections, if any.
func majorityCorrection(patterns []*learnedPattern) (grievance.Outcome, bool) {
	counts := make(map[grievance.Outcome]int)
	for _, p := range patterns {
		counts[p.correction.CorrectedOutcome]++
	}

	outcomes := make([]grievance.Outcome, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })

	best := grievance.Outcome("")
	bestCount := 0
	for _, o := range outcomes {
		if counts[o] > bestCount {
			best, bestCount = o, counts[o]
		}
	}
	if float64(bestCount) > float64(len(patterns))*outcomeSuggestionAgreement {
		return best, true
	}
	return "", false
}

// TrackActualOutcome records how a grievance actually resolved and updates
// the effectiveness of every pattern learned in a matching context.
func (l *Learner) TrackActualOutcome(grievanceID core.GrievanceID, actual grievance.Outcome, resolutionDate, notes string) (prediction.OutcomeRecord, error) {
	if grievanceID == "" {
		return prediction.OutcomeRecord{}, fmt.Errorf("%w: missing grievance id", core.ErrInvalidFeedback)
	}
	if !actual.IsValid() {
		return prediction.OutcomeRecord{}, fmt.Errorf("%w: unknown outcome %q", core.ErrInvalidFeedback, actual)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, hadFeedback := l.feedback[grievanceID]
	record := prediction.OutcomeRecord{
		GrievanceID:      grievanceID,
		ActualOutcome:    actual,
		ResolutionDate:   resolutionDate,
		Notes:            notes,
		RecordedAt:       core.NewTimestamp(l.clock.Now()),
		FeedbackProvided: hadFeedback,
	}
	l.outcomes[grievanceID] = record

	for _, entry := range l.feedback[grievanceID] {
		pred := entry.OriginalPrediction
		accuracy := 0.0
		if pred.Outcome == actual {
			accuracy = 1.0
		}
		for _, patterns := range l.patterns {
			for _, p := range patterns {
				if p.caseType == pred.CaseType && math.Abs(p.originalConfidence-pred.Confidence) < 0.1 {
					p.effectiveness = p.effectiveness*0.9 + accuracy*0.1
				}
			}
		}
	}

	return record, nil
}

// PatternStats summarizes one learned pattern group.
type PatternStats struct {
	CorrectionType       prediction.CorrectionType `json:"correction_type"`
	CaseType             grievance.CaseType        `json:"case_type"`
	PatternCount         int                       `json:"pattern_count"`
	AverageEffectiveness float64                   `json:"average_effectiveness"`
	LastUpdated          core.Timestamp            `json:"last_updated"`
}

// LearningStats is the learner's aggregate view.
type LearningStats struct {
	TotalFeedback    int            `json:"total_feedback"`
	UniqueGrievances int            `json:"unique_grievances"`
	LearningPatterns int            `json:"learning_patterns"`
	TrackedOutcomes  int            `json:"tracked_outcomes"`
	Patterns         []PatternStats `json:"patterns"`
}

// Stats reports feedback volume and per-pattern effectiveness, sorted by
// correction type then case type.
func (l *Learner) Stats() LearningStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := LearningStats{
		TotalFeedback:    len(l.history),
		UniqueGrievances: len(l.feedback),
		LearningPatterns: len(l.patterns),
		TrackedOutcomes:  len(l.outcomes),
	}

	for key, patterns := range l.patterns {
		sum := 0.0
		for _, p := range patterns {
			sum += p.effectiveness
		}
		ps := PatternStats{
			CorrectionType:       key.correctionType,
			CaseType:             key.caseType,
			PatternCount:         len(patterns),
			AverageEffectiveness: math.Round(sum/float64(len(patterns))*100) / 100,
		}
		if len(patterns) > 0 {
			ps.LastUpdated = patterns[len(patterns)-1].recordedAt
		}
		out.Patterns = append(out.Patterns, ps)
	}
	sort.Slice(out.Patterns, func(i, j int) bool {
		if out.Patterns[i].CorrectionType != out.Patterns[j].CorrectionType {
			return out.Patterns[i].CorrectionType < out.Patterns[j].CorrectionType
		}
		return out.Patterns[i].CaseType < out.Patterns[j].CaseType
	})
	return out
}

// Insight is one observation about where predictions keep needing
// correction.
type Insight struct {
	Type           string `json:"type"`
	Finding        string `json:"finding"`
	Recommendation string `json:"recommendation"`
}

var correctionRecommendations = map[prediction.CorrectionType]string{
	prediction.CorrectionConfidence: "Review confidence scoring for more accurate probability estimates",
	prediction.CorrectionOutcome:    "Improve case type classification and precedent matching",
	prediction.CorrectionAnalysis:   "Enhance analysis depth and reasoning completeness",
}

// Insights surfaces the most common correction type and the case type with
// the highest correction rate.
func (l *Learner) Insights() []Insight {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var insights []Insight

	typeCounts := make(map[prediction.CorrectionType]int)
	caseCounts := make(map[grievance.CaseType]int)
	for _, entry := range l.history {
		for _, c := range entry.Corrections {
			typeCounts[c.Type]++
		}
		caseType := entry.OriginalPrediction.CaseType
		if caseType == "" {
			caseType = grievance.CaseGeneral
		}
		caseCounts[caseType]++
	}

	if topType, count, ok := topCorrectionType(typeCounts); ok {
		rec, known := correctionRecommendations[topType]
		if !known {
			rec = "Continue monitoring and collecting feedback"
		}
		insights = append(insights, Insight{
			Type:           "common_corrections",
			Finding:        fmt.Sprintf("Most common correction type: %s (%d instances)", topType, count),
			Recommendation: rec,
		})
	}

	if topCase, rate, ok := topCorrectionRate(caseCounts, len(l.feedback)); ok {
		insights = append(insights, Insight{
			Type:           "case_type_performance",
			Finding:        fmt.Sprintf("Highest correction rate in %s cases (%d%%)", topCase, int(math.Round(rate*100))),
			Recommendation: fmt.Sprintf("Focus improvement efforts on %s case analysis", topCase),
		})
	}

	return insights
}

func topCorrectionType(counts map[prediction.CorrectionType]int) (prediction.CorrectionType, int, bool) {
	types := make([]prediction.CorrectionType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var best prediction.CorrectionType
	bestCount := 0
	for _, t := range types {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	return best, bestCount, bestCount > 0
}

func topCorrectionRate(counts map[grievance.CaseType]int, totalCases int) (grievance.CaseType, float64, bool) {
	if totalCases == 0 {
		return "", 0, false
	}
	types := make([]grievance.CaseType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var best grievance.CaseType
	bestCount := 0
	for _, t := range types {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	if bestCount == 0 {
		return "", 0, false
	}
	return best, float64(bestCount) / float64(totalCases), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
