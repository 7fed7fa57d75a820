package predict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"steward/adapters/calibration"
	"steward/adapters/ensemble"
	"steward/adapters/erroranalysis"
	"steward/adapters/estimate"
	"steward/adapters/extract"
	"steward/adapters/feedback"
	"steward/adapters/similarity"
	"steward/domain/core"
	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/internal/cache"
	"steward/ports"

	"github.com/rs/zerolog"
)

const (
	defaultSimilarLimit    = 3
	defaultSimilarMinScore = 40

	baseConfidence      = 0.5
	baseConfidenceFloor = 0.05
	baseConfidenceCeil  = 0.95
)

// evidenceMultipliers scale base confidence by how well-supported the
// grievance looks.
var evidenceMultipliers = map[grievance.EvidenceStrength]float64{
	grievance.EvidenceHigh:   1.3,
	grievance.EvidenceMedium: 1.0,
	grievance.EvidenceLow:    0.7,
}

// Options toggles the enhancement stages of a prediction.
type Options struct {
	UseCalibration      bool
	UseEnsemble         bool
	UseFeedbackLearning bool
	EnsembleStrategy    ensemble.Strategy
	CaseType            grievance.CaseType
}

// DefaultOptions enables every enhancement with weighted ensemble voting.
func DefaultOptions() Options {
	return Options{
		UseCalibration:      true,
		UseEnsemble:         true,
		UseFeedbackLearning: true,
		EnsembleStrategy:    ensemble.StrategyWeighted,
	}
}

// Analysis is the full result of analyzing one grievance.
type Analysis struct {
	GrievanceID  core.GrievanceID        `json:"grievance_id"`
	Features     grievance.FeatureRecord `json:"features"`
	SimilarCases []prediction.RankedCase `json:"similar_cases"`
	WinEstimate  prediction.WinEstimate  `json:"win_estimate"`
	Prediction   prediction.Prediction   `json:"prediction"`
	Narrative    string                  `json:"narrative,omitempty"`
}

// Engine orchestrates the full prediction pipeline: feature extraction,
// similar-case ranking, win estimation, and the enhancement stages
// (feedback corrections, calibration, ensemble blending).
type Engine struct {
	repo       ports.CaseRepository
	extractor  *extract.Extractor
	scorer     *similarity.Scorer
	estimator  *estimate.Estimator
	calibrator *calibration.Calibrator
	ensemble   *ensemble.Predictor
	learner    *feedback.Learner
	analyzer   *erroranalysis.Analyzer
	generator  ports.Generator
	embedder   ports.Embedder
	log        zerolog.Logger
}

// Config bundles the engine's collaborators. All fields are required except
// Generator and Embedder, which may be nil for heuristic-only operation.
type Config struct {
	Repo       ports.CaseRepository
	Extractor  *extract.Extractor
	Scorer     *similarity.Scorer
	Estimator  *estimate.Estimator
	Calibrator *calibration.Calibrator
	Ensemble   *ensemble.Predictor
	Learner    *feedback.Learner
	Analyzer   *erroranalysis.Analyzer
	Generator  ports.Generator
	Embedder   ports.Embedder
	Log        zerolog.Logger
}

// NewEngine wires the prediction pipeline together.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		repo:       cfg.Repo,
		extractor:  cfg.Extractor,
		scorer:     cfg.Scorer,
		estimator:  cfg.Estimator,
		calibrator: cfg.Calibrator,
		ensemble:   cfg.Ensemble,
		learner:    cfg.Learner,
		analyzer:   cfg.Analyzer,
		generator:  cfg.Generator,
		embedder:   cfg.Embedder,
		log:        cfg.Log,
	}
}

// ExtractFeatures derives the structured feature record for a grievance.
func (e *Engine) ExtractFeatures(text string, hinted grievance.CaseType) grievance.FeatureRecord {
	return e.extractor.Extract(text, hinted)
}

// SimilarCases ranks the corpus against a grievance text. With an embedder
// configured, the query is embedded once and candidates carrying a vector
// from the same provider are scored on blended feature and embedding
// similarity. An embedding failure degrades to feature-only ranking.
func (e *Engine) SimilarCases(ctx context.Context, text string, hinted grievance.CaseType, limit int, minScore float64) ([]prediction.RankedCase, error) {
	corpus, err := e.repo.ListCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	query := e.extractor.Extract(text, hinted)

	if e.embedder != nil {
		emb, err := e.embedder.Embed(ctx, text)
		if err != nil {
			e.log.Warn().Err(err).Msg("query embedding failed, ranking on features only")
		} else if len(emb.Values) > 0 {
			return e.scorer.RankSimilarCasesHybrid(&query, emb.Values, emb.Provider, corpus, limit, minScore), nil
		}
	}
	return e.scorer.RankSimilarCases(&query, corpus, limit, minScore), nil
}

// EstimateWinProbability produces the bounded multi-factor win estimate.
func (e *Engine) EstimateWinProbability(gctx grievance.Context, similar []prediction.RankedCase, violations []grievance.Violation) prediction.WinEstimate {
	return e.estimator.Estimate(gctx, similar, violations)
}

// Analyze runs the whole pipeline for one grievance and, when a generator
// is configured, attaches a narrative analysis.
func (e *Engine) Analyze(ctx context.Context, text string, hinted grievance.CaseType, opts Options) (Analysis, error) {
	features := e.extractor.Extract(text, hinted)
	similar, err := e.SimilarCases(ctx, text, hinted, defaultSimilarLimit, defaultSimilarMinScore)
	if err != nil {
		return Analysis{}, err
	}

	pred, err := e.predict(ctx, text, features, similar, opts)
	if err != nil {
		return Analysis{}, err
	}

	result := Analysis{
		GrievanceID:  core.GrievanceID(core.NewID()),
		Features:     features,
		SimilarCases: similar,
		WinEstimate: e.estimator.Estimate(
			grievance.Context{CaseType: features.CaseType},
			similar,
			violationsFromArticles(features.ContractArticles),
		),
		Prediction: pred,
	}

	if e.generator != nil {
		narrative, err := e.generator.GenerateWithSystem(ctx,
			"You are an experienced union steward. Assess the grievance factually and concisely.",
			text)
		if err != nil {
			// Narrative is best-effort; the heuristic result stands alone.
			e.log.Warn().Err(err).Msg("narrative generation failed")
		} else {
			result.Narrative = narrative
		}
	}

	return result, nil
}

// Predict runs the enhancement pipeline over a base prediction.
func (e *Engine) Predict(ctx context.Context, text string, opts Options) (prediction.Prediction, error) {
	features := e.extractor.Extract(text, opts.CaseType)
	similar, err := e.SimilarCases(ctx, text, opts.CaseType, defaultSimilarLimit, defaultSimilarMinScore)
	if err != nil {
		return prediction.Prediction{}, err
	}
	return e.predict(ctx, text, features, similar, opts)
}

func (e *Engine) predict(ctx context.Context, text string, features grievance.FeatureRecord, similar []prediction.RankedCase, opts Options) (prediction.Prediction, error) {
	caseType := opts.CaseType
	if !caseType.IsValid() {
		caseType = features.CaseType
	}

	pred := basePrediction(features, similar, caseType)

	if opts.UseFeedbackLearning {
		pred = e.learner.ApplyLearnedCorrections(pred)
	}

	if opts.UseCalibration && e.calibrator.HasProfile(caseType) {
		pred.Confidence = e.calibrator.Apply(caseType, pred.Confidence)
		pred.CalibrationApplied = true
	}

	if opts.UseEnsemble && e.ensemble.ModelCount() > 0 {
		strategy := opts.EnsembleStrategy
		if strategy == "" {
			strategy = ensemble.StrategyWeighted
		}
		ensemblePred, err := e.ensemble.Predict(ctx, text, strategy)
		if err != nil {
			// The base prediction survives an ensemble outage.
			e.log.Warn().Err(err).Msg("ensemble prediction failed")
		} else if ensemblePred.Confidence > pred.Confidence {
			pred.Outcome = ensemblePred.Outcome
			pred.Confidence = ensemblePred.Confidence
			pred.Source = prediction.SourceEnsemble
		}
	}

	return pred, nil
}

// basePrediction builds the heuristic starting point: confidence scaled by
// evidence strength and similar-case proximity, outcome voted by the
// similar cases (denied when there is no precedent to lean on).
func basePrediction(features grievance.FeatureRecord, similar []prediction.RankedCase, caseType grievance.CaseType) prediction.Prediction {
	confidence := baseConfidence

	if mult, ok := evidenceMultipliers[features.EvidenceStrength]; ok {
		confidence *= mult
	}

	if len(similar) > 0 {
		total := 0.0
		for _, rc := range similar {
			total += rc.Similarity
		}
		// Similarity is 0-100; the multiplier spans 0.8-1.2.
		avg := total / float64(len(similar)) / 100
		confidence *= 0.8 + avg*0.4
	}

	if confidence < baseConfidenceFloor {
		confidence = baseConfidenceFloor
	}
	if confidence > baseConfidenceCeil {
		confidence = baseConfidenceCeil
	}

	return prediction.Prediction{
		Outcome:           majorityOutcome(similar),
		Confidence:        confidence,
		CaseType:          caseType,
		SimilarCasesFound: len(similar),
		Source:            prediction.SourceBase,
	}
}

func majorityOutcome(similar []prediction.RankedCase) grievance.Outcome {
	counts := make(map[grievance.Outcome]int)
	for _, rc := range similar {
		if rc.Case.Outcome != "" {
			counts[rc.Case.Outcome]++
		}
	}

	outcomes := make([]grievance.Outcome, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })

	winner := grievance.OutcomeDenied
	best := 0
	for _, o := range outcomes {
		if counts[o] > best {
			winner, best = o, counts[o]
		}
	}
	return winner
}

func violationsFromArticles(articles []string) []grievance.Violation {
	violations := make([]grievance.Violation, 0, len(articles))
	for _, a := range articles {
		violations = append(violations, grievance.Violation{
			Article:     a,
			Description: fmt.Sprintf("Cited contract article %s", a),
		})
	}
	return violations
}

// Calibrate fits a calibration profile for caseType from historical
// prediction/outcome pairs.
func (e *Engine) Calibrate(caseType grievance.CaseType, predictions []float64, outcomes []int) (prediction.CalibrationProfile, error) {
	return e.calibrator.Calibrate(caseType, predictions, outcomes)
}

// ApplyCalibration maps a raw confidence through caseType's fitted profile.
// Without a profile the value passes through clamped.
func (e *Engine) ApplyCalibration(caseType grievance.CaseType, confidence float64) float64 {
	return e.calibrator.Apply(caseType, confidence)
}

// NeedsRecalibration reports whether caseType's profile is missing, stale,
// or underperforming.
func (e *Engine) NeedsRecalibration(caseType grievance.CaseType, recentAccuracy float64) bool {
	return e.calibrator.NeedsRecalibration(caseType, recentAccuracy)
}

// AddModel registers an ensemble member.
func (e *Engine) AddModel(id core.ModelID, fn ports.ModelFunc, weight float64) {
	e.ensemble.AddModel(id, fn, weight)
}

// RemoveModel drops an ensemble member.
func (e *Engine) RemoveModel(id core.ModelID) {
	e.ensemble.RemoveModel(id)
}

// UpdateModelWeights feeds observed accuracy, and optionally the member's
// reported confidence, back into its weight.
func (e *Engine) UpdateModelWeights(id core.ModelID, accuracy float64, confidence ...float64) {
	e.ensemble.UpdateWeights(id, accuracy, confidence...)
}

// PredictEnsemble queries the ensemble directly.
func (e *Engine) PredictEnsemble(ctx context.Context, text string, strategy ensemble.Strategy) (prediction.Prediction, error) {
	return e.ensemble.Predict(ctx, text, strategy)
}

// RecordFeedback stores a user correction for learning.
func (e *Engine) RecordFeedback(grievanceID core.GrievanceID, original, corrected prediction.Prediction, feedbackType prediction.FeedbackType) (prediction.FeedbackEntry, error) {
	return e.learner.RecordFeedback(grievanceID, original, corrected, feedbackType)
}

// TrackActualOutcome records how a grievance actually resolved.
func (e *Engine) TrackActualOutcome(grievanceID core.GrievanceID, actual grievance.Outcome, resolutionDate, notes string) (prediction.OutcomeRecord, error) {
	return e.learner.TrackActualOutcome(grievanceID, actual, resolutionDate, notes)
}

// RecordError stores a misprediction for pattern analysis.
func (e *Engine) RecordError(grievanceID core.GrievanceID, pred prediction.Prediction, actual grievance.Outcome, errCtx prediction.ErrorContext) prediction.ErrorRecord {
	return e.analyzer.RecordError(grievanceID, pred, actual, errCtx)
}

// ErrorReport summarizes recorded errors over the last windowDays days.
func (e *Engine) ErrorReport(windowDays int) erroranalysis.Report {
	return e.analyzer.Report(time.Duration(windowDays) * 24 * time.Hour)
}

// EnhancementStats is a cross-component health snapshot.
type EnhancementStats struct {
	CorpusSize          int                             `json:"corpus_size"`
	EnsembleModels      []ensemble.ModelStats           `json:"ensemble_models"`
	Feedback            feedback.LearningStats          `json:"feedback"`
	CalibrationProfiles []prediction.CalibrationProfile `json:"calibration_profiles"`
	SimilarityCache     cache.Stats                     `json:"similarity_cache"`
}

// Stats gathers the engine-wide enhancement statistics.
func (e *Engine) Stats(ctx context.Context) (EnhancementStats, error) {
	count, err := e.repo.CountCases(ctx)
	if err != nil {
		return EnhancementStats{}, fmt.Errorf("count cases: %w", err)
	}
	return EnhancementStats{
		CorpusSize:          count,
		EnsembleModels:      e.ensemble.Stats(),
		Feedback:            e.learner.Stats(),
		CalibrationProfiles: e.calibrator.Profiles(),
		SimilarityCache:     e.scorer.CacheStats(),
	}, nil
}
