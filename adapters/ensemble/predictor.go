package ensemble

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"steward/domain/core"
	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/ports"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Strategy selects how member votes combine into one prediction.
type Strategy string

const (
	StrategyMajority   Strategy = "majority"
	StrategyWeighted   Strategy = "weighted"
	StrategyConfidence Strategy = "confidence"
	StrategyBayesian   Strategy = "bayesian"
)

const (
	defaultMemberTimeout = 30 * time.Second

	weightFloor = 0.1
	weightCeil  = 2.0

	// Weight updates blend slowly toward recent accuracy so one bad batch
	// cannot crater an otherwise reliable member.
	weightDecay      = 0.9
	weightLearnRate  = 0.1
	accuracyWindow   = 10
	maxAccuracyEntry = 100
)

// outcomePriors reflect the historical distribution of grievance results.
var outcomePriors = map[string]float64{
	"granted": 0.6,
	"denied":  0.3,
	"settled": 0.1,
}

// performanceSample is one observed outcome for a member: how accurate it
// was, and how confident it claimed to be. Only accuracy drives the weight;
// confidence is kept for the stats surface.
type performanceSample struct {
	accuracy   float64
	confidence float64
}

type member struct {
	fn      ports.ModelFunc
	weight  float64
	history []performanceSample
}

type vote struct {
	modelID core.ModelID
	pred    prediction.Prediction
	weight  float64
}

// Predictor fans a grievance out to every registered model concurrently and
// combines the votes with a pluggable strategy. Members that fail or time
// out are skipped; a prediction only fails when every member does.
type Predictor struct {
	mu            sync.RWMutex
	members       map[core.ModelID]*member
	memberTimeout time.Duration
	log           zerolog.Logger
}

// NewPredictor creates an empty ensemble.
func NewPredictor(log zerolog.Logger) *Predictor {
	return &Predictor{
		members:       make(map[core.ModelID]*member),
		memberTimeout: defaultMemberTimeout,
		log:           log,
	}
}

// NewPredictorWithTimeout overrides the per-member timeout.
func NewPredictorWithTimeout(log zerolog.Logger, timeout time.Duration) *Predictor {
	p := NewPredictor(log)
	if timeout > 0 {
		p.memberTimeout = timeout
	}
	return p
}

// AddModel registers (or replaces) a member with the given starting weight.
// Non-positive weights default to 1.
func (p *Predictor) AddModel(id core.ModelID, fn ports.ModelFunc, weight float64) {
	if weight <= 0 {
		weight = 1.0
	}
	p.mu.Lock()
	p.members[id] = &member{fn: fn, weight: clampWeight(weight)}
	p.mu.Unlock()
}

// RemoveModel drops a member. Removing an unknown id is a no-op.
func (p *Predictor) RemoveModel(id core.ModelID) {
	p.mu.Lock()
	delete(p.members, id)
	p.mu.Unlock()
}

// ModelCount returns how many members are registered.
func (p *Predictor) ModelCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

// Predict queries every member concurrently and combines the surviving
// votes per strategy. Returns ErrUnknownStrategy for an unrecognized
// strategy and ErrNoModelsAvailable when no member produced a vote.
func (p *Predictor) Predict(ctx context.Context, grievanceText string, strategy Strategy) (prediction.Prediction, error) {
	combine, err := combinerFor(strategy)
	if err != nil {
		return prediction.Prediction{}, err
	}

	p.mu.RLock()
	snapshot := make(map[core.ModelID]member, len(p.members))
	for id, m := range p.members {
		snapshot[id] = *m
	}
	timeout := p.memberTimeout
	p.mu.RUnlock()

	if len(snapshot) == 0 {
		return prediction.Prediction{}, core.ErrNoModelsAvailable
	}

	var voteMu sync.Mutex
	votes := make([]vote, 0, len(snapshot))

	g, gctx := errgroup.WithContext(ctx)
	for id, m := range snapshot {
		id, m := id, m
		g.Go(func() error {
			memberCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			pred, err := m.fn(memberCtx, grievanceText)
			if err != nil {
				// Member failures degrade the ensemble, never fail it.
				p.log.Warn().
					Str("model", id.String()).
					Err(err).
					Msg("ensemble member failed")
				return nil
			}
			voteMu.Lock()
			votes = append(votes, vote{modelID: id, pred: pred, weight: m.weight})
			voteMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return prediction.Prediction{}, err
	}

	if len(votes) == 0 {
		return prediction.Prediction{}, fmt.Errorf("%w: all %d members failed", core.ErrNoModelsAvailable, len(snapshot))
	}

	combined := combine(votes)
	combined.Source = prediction.SourceEnsemble
	return combined, nil
}

// UpdateWeights records a member's observed accuracy, plus the confidence
// it reported when known, and nudges its voting weight toward its recent
// average accuracy. Unknown models are ignored.
func (p *Predictor) UpdateWeights(id core.ModelID, accuracy float64, confidence ...float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[id]
	if !ok {
		return
	}

	sample := performanceSample{accuracy: accuracy}
	if len(confidence) > 0 {
		sample.confidence = confidence[0]
	}
	m.history = append(m.history, sample)
	if len(m.history) > maxAccuracyEntry {
		m.history = m.history[len(m.history)-maxAccuracyEntry:]
	}

	recent, err := stats.Mean(recentAccuracies(m.history))
	if err != nil {
		return
	}
	m.weight = clampWeight(weightDecay*m.weight + weightLearnRate*recent)
}

func recentWindow(history []performanceSample) []performanceSample {
	if len(history) > accuracyWindow {
		return history[len(history)-accuracyWindow:]
	}
	return history
}

func recentAccuracies(history []performanceSample) []float64 {
	window := recentWindow(history)
	out := make([]float64, len(window))
	for i, s := range window {
		out[i] = s.accuracy
	}
	return out
}

func recentConfidences(history []performanceSample) []float64 {
	window := recentWindow(history)
	out := make([]float64, len(window))
	for i, s := range window {
		out[i] = s.confidence
	}
	return out
}

// ModelStats describes one registered member.
type ModelStats struct {
	ModelID          core.ModelID `json:"model_id"`
	Weight           float64      `json:"weight"`
	SamplesObserved  int          `json:"samples_observed"`
	RecentAccuracy   float64      `json:"recent_accuracy"`
	RecentConfidence float64      `json:"recent_confidence"`
}

// Stats returns per-member weights and accuracy, sorted by model id.
func (p *Predictor) Stats() []ModelStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ModelStats, 0, len(p.members))
	for id, m := range p.members {
		s := ModelStats{
			ModelID:         id,
			Weight:          m.weight,
			SamplesObserved: len(m.history),
		}
		if mean, err := stats.Mean(recentAccuracies(m.history)); err == nil {
			s.RecentAccuracy = mean
		}
		if mean, err := stats.Mean(recentConfidences(m.history)); err == nil {
			s.RecentConfidence = mean
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

type combiner func([]vote) prediction.Prediction

func combinerFor(strategy Strategy) (combiner, error) {
	switch strategy {
	case StrategyMajority:
		return combineMajority, nil
	case StrategyWeighted:
		return combineWeighted, nil
	case StrategyConfidence:
		return combineConfidence, nil
	case StrategyBayesian:
		return combineBayesian, nil
	default:
		return nil, core.NewUnknownStrategyError(string(strategy))
	}
}

// combineMajority counts one vote per member; confidence is the winning
// share of the total vote count.
func combineMajority(votes []vote) prediction.Prediction {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.pred.Outcome.String()]++
	}
	winner, _ := argmaxInt(counts)
	return buildPrediction(votes, winner, float64(counts[winner])/float64(len(votes)))
}

// combineWeighted scores each outcome by the sum of weight*confidence of
// the members voting for it, normalized by the total weight of all voters.
// Unanimous members at confidence c therefore combine to c, not 1.
func combineWeighted(votes []vote) prediction.Prediction {
	scores := make(map[string]float64)
	totalWeight := 0.0
	for _, v := range votes {
		scores[v.pred.Outcome.String()] += v.weight * v.pred.Confidence
		totalWeight += v.weight
	}
	winner, best := argmaxFloat(scores)
	confidence := 0.0
	if totalWeight > 0 {
		confidence = best / totalWeight
	}
	return buildPrediction(votes, winner, confidence)
}

// combineConfidence is weighted voting where each member's own confidence
// is its weight.
func combineConfidence(votes []vote) prediction.Prediction {
	scores := make(map[string]float64)
	total := 0.0
	for _, v := range votes {
		scores[v.pred.Outcome.String()] += v.pred.Confidence
		total += v.pred.Confidence
	}
	winner, best := argmaxFloat(scores)
	confidence := 0.0
	if total > 0 {
		confidence = best / total
	}
	return buildPrediction(votes, winner, confidence)
}

// combineBayesian multiplies outcome priors by the mean confidence of the
// members voting for each outcome (0.5 when none did), then normalizes.
func combineBayesian(votes []vote) prediction.Prediction {
	byOutcome := make(map[string][]float64)
	for _, v := range votes {
		key := v.pred.Outcome.String()
		byOutcome[key] = append(byOutcome[key], v.pred.Confidence)
	}

	posterior := make(map[string]float64, len(outcomePriors))
	total := 0.0
	for outcome, prior := range outcomePriors {
		likelihood := 0.5
		if confs, ok := byOutcome[outcome]; ok {
			if mean, err := stats.Mean(confs); err == nil {
				likelihood = mean
			}
		}
		posterior[outcome] = prior * likelihood
		total += prior * likelihood
	}
	for outcome := range posterior {
		posterior[outcome] /= total
	}

	winner, confidence := argmaxFloat(posterior)
	return buildPrediction(votes, winner, confidence)
}

// buildPrediction fills shared fields from the votes backing the winning
// outcome, preferring the most confident backer's analysis.
func buildPrediction(votes []vote, winner string, confidence float64) prediction.Prediction {
	combined := prediction.Prediction{
		Outcome:    outcomeFromString(winner),
		Confidence: confidence,
	}
	bestConf := -1.0
	for _, v := range votes {
		if v.pred.Outcome.String() != winner {
			continue
		}
		if v.pred.Confidence > bestConf {
			bestConf = v.pred.Confidence
			combined.CaseType = v.pred.CaseType
			combined.SimilarCasesFound = v.pred.SimilarCasesFound
			combined.Analysis = v.pred.Analysis
		}
	}
	return combined
}

func outcomeFromString(s string) grievance.Outcome {
	return grievance.Outcome(s)
}

func argmaxInt(m map[string]int) (string, int) {
	keys := sortedKeysInt(m)
	best, bestV := "", -1
	for _, k := range keys {
		if m[k] > bestV {
			best, bestV = k, m[k]
		}
	}
	return best, bestV
}

func argmaxFloat(m map[string]float64) (string, float64) {
	keys := sortedKeysFloat(m)
	best, bestV := "", -1.0
	for _, k := range keys {
		if m[k] > bestV {
			best, bestV = k, m[k]
		}
	}
	return best, bestV
}

// Map iteration order is random; sorting keys keeps tie-breaks stable.
func sortedKeysInt(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysFloat(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clampWeight(w float64) float64 {
	if w < weightFloor {
		return weightFloor
	}
	if w > weightCeil {
		return weightCeil
	}
	return w
}
