package predict

import (
	"context"
	"errors"
	"testing"
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
	"steward/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	cases   []grievance.HistoricalCase
	listErr error
}

func (m *memoryRepo) ListCases(ctx context.Context) ([]grievance.HistoricalCase, error) {
	return m.cases, m.listErr
}

func (m *memoryRepo) GetCase(ctx context.Context, id core.CaseID) (*grievance.HistoricalCase, error) {
	for i := range m.cases {
		if m.cases[i].ID == id {
			return &m.cases[i], nil
		}
	}
	return nil, core.ErrCaseNotFound
}

func (m *memoryRepo) InsertCase(ctx context.Context, c grievance.HistoricalCase) error {
	m.cases = append(m.cases, c)
	return nil
}

func (m *memoryRepo) CountCases(ctx context.Context) (int, error) {
	return len(m.cases), nil
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type staticGenerator struct {
	output string
	err    error
}

func (g *staticGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.output, g.err
}

func (g *staticGenerator) GenerateWithSystem(ctx context.Context, system, user string) (string, error) {
	return g.output, g.err
}

type fixedEmbedder struct {
	emb ports.Embedding
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) (ports.Embedding, error) {
	return f.emb, f.err
}

func newEngine(repo ports.CaseRepository, gen ports.Generator) *Engine {
	return newEngineWithEmbedder(repo, gen, nil)
}

func newEngineWithEmbedder(repo ports.CaseRepository, gen ports.Generator, emb ports.Embedder) *Engine {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewEngine(Config{
		Repo:       repo,
		Extractor:  extract.New(),
		Scorer:     similarity.NewScorer(),
		Estimator:  estimate.NewEstimator(),
		Calibrator: calibration.NewCalibrator(clock),
		Ensemble:   ensemble.NewPredictor(zerolog.Nop()),
		Learner:    feedback.NewLearner(clock),
		Analyzer:   erroranalysis.NewAnalyzer(clock),
		Generator:  gen,
		Embedder:   emb,
		Log:        zerolog.Nop(),
	})
}

// corpusCase builds a historical case whose features come from the same
// extraction path as a query, so its similarity to that query is maximal.
func corpusCase(text string, outcome grievance.Outcome) grievance.HistoricalCase {
	features := extract.New().Extract(text, "")
	features.Outcome = outcome
	return grievance.HistoricalCase{
		ID:       core.CaseID(core.NewID()),
		Features: features,
		Outcome:  outcome,
	}
}

const terminationText = "Employee was terminated for a single tardiness incident with no prior written warnings, violating article 8"

func TestPredict_EmptyCorpusBasePrediction(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)

	// No evidence markers: low evidence, 0.5 * 0.7.
	got, err := e.Predict(context.Background(), "the grievant disagrees with the schedule", Options{})
	require.NoError(t, err)

	assert.Equal(t, grievance.OutcomeDenied, got.Outcome)
	assert.InDelta(t, 0.35, got.Confidence, 1e-9)
	assert.Equal(t, 0, got.SimilarCasesFound)
	assert.Equal(t, prediction.SourceBase, got.Source)
	assert.False(t, got.CalibrationApplied)
}

func TestPredict_StrongEvidenceRaisesConfidence(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)

	got, err := e.Predict(context.Background(), terminationText, Options{})
	require.NoError(t, err)

	// High evidence: 0.5 * 1.3.
	assert.InDelta(t, 0.65, got.Confidence, 1e-9)
	assert.Equal(t, grievance.CaseTermination, got.CaseType)
}

func TestPredict_SimilarCasesVoteTheOutcome(t *testing.T) {
	repo := &memoryRepo{cases: []grievance.HistoricalCase{
		corpusCase(terminationText, grievance.OutcomeGranted),
		corpusCase(terminationText, grievance.OutcomeGranted),
		corpusCase(terminationText, grievance.OutcomeDenied),
	}}
	e := newEngine(repo, nil)

	got, err := e.Predict(context.Background(), terminationText, Options{})
	require.NoError(t, err)

	assert.Equal(t, grievance.OutcomeGranted, got.Outcome)
	assert.Equal(t, 3, got.SimilarCasesFound)
	// Identical features keep the average similarity high, so the
	// proximity multiplier sits near the 1.2 ceiling.
	assert.Greater(t, got.Confidence, 0.65)
}

func TestPredict_RepositoryErrorSurfaces(t *testing.T) {
	e := newEngine(&memoryRepo{listErr: errors.New("db offline")}, nil)
	_, err := e.Predict(context.Background(), terminationText, Options{})
	assert.Error(t, err)
}

func TestPredict_FeedbackLearningAdjustsConfidence(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)

	// Base prediction for this text is 0.35 low-evidence denied.
	text := "the grievant disagrees with the schedule"
	base, err := e.Predict(context.Background(), text, Options{})
	require.NoError(t, err)

	original := base
	corrected := base
	corrected.Confidence = 0.55
	for i := 0; i < 3; i++ {
		_, err := e.RecordFeedback("g-1", original, corrected, prediction.FeedbackCorrection)
		require.NoError(t, err)
	}

	got, err := e.Predict(context.Background(), text, Options{UseFeedbackLearning: true})
	require.NoError(t, err)

	require.NotNil(t, got.FeedbackApplied)
	// Average delta 0.2 dampened to 0.02.
	assert.InDelta(t, 0.37, got.Confidence, 1e-9)
}

func TestPredict_CalibrationApplied(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)

	predictions := []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}
	outcomes := []int{1, 1, 1, 0, 0, 0}
	_, err := e.Calibrate(grievance.CaseGeneral, predictions, outcomes)
	require.NoError(t, err)

	got, err := e.Predict(context.Background(), "the grievant disagrees with the schedule", Options{UseCalibration: true})
	require.NoError(t, err)

	assert.True(t, got.CalibrationApplied)
	assert.GreaterOrEqual(t, got.Confidence, 0.01)
	assert.LessOrEqual(t, got.Confidence, 0.99)
}

func TestPredict_EnsembleOverridesWhenMoreConfident(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)
	e.AddModel("confident", func(ctx context.Context, text string) (prediction.Prediction, error) {
		return prediction.Prediction{Outcome: grievance.OutcomeGranted, Confidence: 0.97}, nil
	}, 1.0)

	got, err := e.Predict(context.Background(), "the grievant disagrees with the schedule", Options{
		UseEnsemble:      true,
		EnsembleStrategy: ensemble.StrategyConfidence,
	})
	require.NoError(t, err)

	assert.Equal(t, grievance.OutcomeGranted, got.Outcome)
	assert.Equal(t, prediction.SourceEnsemble, got.Source)
}

func TestPredict_EnsembleFailureFallsBackToBase(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)
	e.AddModel("broken", func(ctx context.Context, text string) (prediction.Prediction, error) {
		return prediction.Prediction{}, errors.New("upstream down")
	}, 1.0)

	got, err := e.Predict(context.Background(), "the grievant disagrees with the schedule", Options{UseEnsemble: true})
	require.NoError(t, err)

	assert.Equal(t, prediction.SourceBase, got.Source)
	assert.InDelta(t, 0.35, got.Confidence, 1e-9)
}

func TestPredict_HintedCaseTypeWins(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)

	got, err := e.Predict(context.Background(), terminationText, Options{CaseType: grievance.CaseSafety})
	require.NoError(t, err)
	assert.Equal(t, grievance.CaseSafety, got.CaseType)
}

func TestAnalyze_FullPipeline(t *testing.T) {
	repo := &memoryRepo{cases: []grievance.HistoricalCase{
		corpusCase(terminationText, grievance.OutcomeGranted),
	}}
	e := newEngine(repo, &staticGenerator{output: "steward assessment"})

	got, err := e.Analyze(context.Background(), terminationText, "", DefaultOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, got.GrievanceID)
	assert.Equal(t, grievance.CaseTermination, got.Features.CaseType)
	assert.Len(t, got.SimilarCases, 1)
	assert.Greater(t, got.WinEstimate.Percentage, 50)
	assert.Equal(t, "steward assessment", got.Narrative)
}

func TestAnalyze_NarrativeFailureIsNonFatal(t *testing.T) {
	e := newEngine(&memoryRepo{}, &staticGenerator{err: errors.New("provider down")})

	got, err := e.Analyze(context.Background(), terminationText, "", Options{})
	require.NoError(t, err)
	assert.Empty(t, got.Narrative)
	assert.NotZero(t, got.WinEstimate.Percentage)
}

func TestSimilarCases_EmbeddingReordersMatchingProviderPrecedent(t *testing.T) {
	aligned := corpusCase(terminationText, grievance.OutcomeGranted)
	aligned.Embedding = []float64{1, 0}
	aligned.Provider = "gemini"

	orthogonal := corpusCase(terminationText, grievance.OutcomeGranted)
	orthogonal.Embedding = []float64{0, 1}
	orthogonal.Provider = "gemini"

	otherSpace := corpusCase(terminationText, grievance.OutcomeGranted)
	otherSpace.Embedding = []float64{0, 1}
	otherSpace.Provider = "static"

	repo := &memoryRepo{cases: []grievance.HistoricalCase{orthogonal, otherSpace, aligned}}
	e := newEngineWithEmbedder(repo, nil, &fixedEmbedder{
		emb: ports.Embedding{Values: []float64{1, 0}, Provider: "gemini"},
	})

	ranked, err := e.SimilarCases(context.Background(), terminationText, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// All three share identical features; only the aligned vector in the
	// query's provider space lifts its score. The orthogonal vector from
	// the same provider drags its score down, while the case embedded by
	// a different provider keeps its feature score untouched.
	assert.Equal(t, aligned.ID, ranked[0].Case.ID)
	assert.Equal(t, otherSpace.ID, ranked[1].Case.ID)
	assert.Equal(t, orthogonal.ID, ranked[2].Case.ID)
	assert.Greater(t, ranked[0].Similarity, ranked[1].Similarity)
	assert.Greater(t, ranked[1].Similarity, ranked[2].Similarity)
}

func TestSimilarCases_EmbeddingFailureFallsBackToFeatures(t *testing.T) {
	c := corpusCase(terminationText, grievance.OutcomeGranted)
	c.Embedding = []float64{1, 0}
	c.Provider = "gemini"
	repo := &memoryRepo{cases: []grievance.HistoricalCase{c}}

	broken := newEngineWithEmbedder(repo, nil, &fixedEmbedder{err: errors.New("quota exceeded")})
	featureOnly := newEngine(repo, nil)

	got, err := broken.SimilarCases(context.Background(), terminationText, "", 10, 0)
	require.NoError(t, err)
	want, err := featureOnly.SimilarCases(context.Background(), terminationText, "", 10, 0)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestRecordErrorAndReport(t *testing.T) {
	e := newEngine(&memoryRepo{}, nil)

	pred := prediction.Prediction{
		Outcome:    grievance.OutcomeGranted,
		Confidence: 0.9,
		CaseType:   grievance.CaseTermination,
	}
	record := e.RecordError("g-1", pred, grievance.OutcomeDenied, prediction.ErrorContext{
		EvidenceStrength:  grievance.EvidenceHigh,
		SimilarCasesFound: 3,
	})
	assert.Equal(t, prediction.ErrorOutcomeReversal, record.ErrorType)

	report := e.ErrorReport(30)
	assert.Equal(t, 1, report.TotalErrors)
}

func TestStats_Snapshot(t *testing.T) {
	repo := &memoryRepo{cases: []grievance.HistoricalCase{
		corpusCase(terminationText, grievance.OutcomeGranted),
	}}
	e := newEngine(repo, nil)
	e.AddModel("m1", func(ctx context.Context, text string) (prediction.Prediction, error) {
		return prediction.Prediction{Outcome: grievance.OutcomeGranted, Confidence: 0.8}, nil
	}, 1.0)

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CorpusSize)
	require.Len(t, stats.EnsembleModels, 1)
	assert.Equal(t, core.ModelID("m1"), stats.EnsembleModels[0].ModelID)
	assert.Empty(t, stats.CalibrationProfiles)
}
