package calibration

import (
	"testing"
	"time"

	"steward/domain/core"
	"steward/domain/grievance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// correlatedSamples returns predictions that broadly agree with outcomes:
// high confidences on favorable results, low on unfavorable ones.
func correlatedSamples() ([]float64, []int) {
	predictions := []float64{0.9, 0.85, 0.8, 0.75, 0.7, 0.3, 0.25, 0.2, 0.15, 0.1}
	outcomes := []int{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
	return predictions, outcomes
}

func TestCalibrate_EmptySamplesIsError(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	_, err := c.Calibrate(grievance.CaseTermination, nil, nil)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestCalibrate_MismatchedLengthsIsError(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	_, err := c.Calibrate(grievance.CaseTermination, []float64{0.5, 0.6}, []int{1})
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestCalibrate_ProfileFields(t *testing.T) {
	clock := newFakeClock()
	c := NewCalibrator(clock)
	predictions, outcomes := correlatedSamples()

	profile, err := c.Calibrate(grievance.CaseDiscipline, predictions, outcomes)
	require.NoError(t, err)

	assert.Equal(t, grievance.CaseDiscipline, profile.CaseType)
	assert.Equal(t, len(predictions), profile.SampleSize)
	assert.GreaterOrEqual(t, profile.Temperature, 0.1)
	assert.LessOrEqual(t, profile.Temperature, 2.0)
	assert.Equal(t, clock.now, profile.LastCalibrated.Time())
	// Every thresholded prediction matches its outcome.
	assert.Equal(t, 1.0, profile.BaselineAccuracy)
}

func TestCalibrate_IsDeterministic(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	predictions, outcomes := correlatedSamples()

	first, err := c.Calibrate(grievance.CaseOvertime, predictions, outcomes)
	require.NoError(t, err)
	second, err := c.Calibrate(grievance.CaseOvertime, predictions, outcomes)
	require.NoError(t, err)

	assert.Equal(t, first.Temperature, second.Temperature)
	assert.Equal(t, first.PlattWeights, second.PlattWeights)
}

func TestApply_WithoutProfilePassesThroughClamped(t *testing.T) {
	c := NewCalibrator(newFakeClock())

	assert.Equal(t, 0.5, c.Apply(grievance.CaseTermination, 0.5))
	assert.Equal(t, 0.99, c.Apply(grievance.CaseTermination, 1.5))
	assert.Equal(t, 0.01, c.Apply(grievance.CaseTermination, 0.0))
}

func TestApply_StaysInBounds(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	predictions, outcomes := correlatedSamples()
	_, err := c.Calibrate(grievance.CaseTermination, predictions, outcomes)
	require.NoError(t, err)

	for _, raw := range []float64{0.0, 0.05, 0.25, 0.5, 0.75, 0.95, 1.0} {
		got := c.Apply(grievance.CaseTermination, raw)
		assert.GreaterOrEqual(t, got, 0.01)
		assert.LessOrEqual(t, got, 0.99)
	}
}

func TestApply_PreservesOrderingOnCorrelatedFit(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	predictions, outcomes := correlatedSamples()
	_, err := c.Calibrate(grievance.CaseTermination, predictions, outcomes)
	require.NoError(t, err)

	// Fitting on positively correlated data must keep higher raw
	// confidence at least as high after calibration.
	assert.Greater(t,
		c.Apply(grievance.CaseTermination, 0.9),
		c.Apply(grievance.CaseTermination, 0.1))
}

func TestApply_OnlyAffectsFittedCaseType(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	predictions, outcomes := correlatedSamples()
	_, err := c.Calibrate(grievance.CaseTermination, predictions, outcomes)
	require.NoError(t, err)

	assert.True(t, c.HasProfile(grievance.CaseTermination))
	assert.False(t, c.HasProfile(grievance.CaseSafety))
	// Unfitted case types pass through untouched.
	assert.Equal(t, 0.42, c.Apply(grievance.CaseSafety, 0.42))
}

func TestProfile_NotFound(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	_, err := c.Profile(grievance.CaseHarassment)
	assert.ErrorIs(t, err, core.ErrProfileNotFound)
}

func TestNeedsRecalibration_NoProfile(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	assert.True(t, c.NeedsRecalibration(grievance.CaseTermination, 0.9))
}

func TestNeedsRecalibration_FreshProfileHoldingAccuracy(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	predictions, outcomes := correlatedSamples()
	profile, err := c.Calibrate(grievance.CaseTermination, predictions, outcomes)
	require.NoError(t, err)

	assert.False(t, c.NeedsRecalibration(grievance.CaseTermination, profile.BaselineAccuracy))
	// A small dip within tolerance does not trigger a refit.
	assert.False(t, c.NeedsRecalibration(grievance.CaseTermination, profile.BaselineAccuracy-0.04))
}

func TestNeedsRecalibration_AccuracyDrop(t *testing.T) {
	c := NewCalibrator(newFakeClock())
	predictions, outcomes := correlatedSamples()
	profile, err := c.Calibrate(grievance.CaseTermination, predictions, outcomes)
	require.NoError(t, err)

	assert.True(t, c.NeedsRecalibration(grievance.CaseTermination, profile.BaselineAccuracy-0.06))
}

func TestNeedsRecalibration_StaleProfile(t *testing.T) {
	clock := newFakeClock()
	c := NewCalibrator(clock)
	predictions, outcomes := correlatedSamples()
	profile, err := c.Calibrate(grievance.CaseTermination, predictions, outcomes)
	require.NoError(t, err)

	clock.Advance(31 * 24 * time.Hour)
	assert.True(t, c.NeedsRecalibration(grievance.CaseTermination, profile.BaselineAccuracy))
}

func TestFitTemperature_TieKeepsSmallestT(t *testing.T) {
	// A single sample at 0.999 with outcome 1 saturates the clamp for
	// every t <= 1.0, so their NLLs tie and the smallest t must win.
	got := fitTemperature([]float64{0.999}, []int{1})
	assert.InDelta(t, 0.1, got, 1e-9)
}
