package calibration

import (
	"fmt"
	"math"
	"sync"
	"time"

	"steward/domain/core"
	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/ports"

	"gonum.org/v1/gonum/stat"
)

const (
	temperatureMin  = 0.1
	temperatureMax  = 2.0
	temperatureStep = 0.1

	plattLearningRate = 0.01
	plattEpochs       = 100

	confidenceFloor = 0.01
	confidenceCeil  = 0.99

	// maxProfileAge forces periodic refits even when accuracy holds up.
	maxProfileAge = 30 * 24 * time.Hour

	// accuracyDropThreshold triggers a refit when recent accuracy falls
	// this far below the accuracy measured at fit time. The source
	// compared the recent accuracy against 0.05 directly, which would
	// almost never fire; here the threshold is an explicit drop amount.
	accuracyDropThreshold = 0.05
)

// Calibrator recalibrates raw model confidences per case type using
// temperature scaling followed by Platt (logistic) scaling, both fit from
// historical prediction/outcome pairs. Fitting is deterministic: no
// randomness, fixed iteration counts, stable tie-breaks.
type Calibrator struct {
	mu       sync.RWMutex
	profiles map[grievance.CaseType]prediction.CalibrationProfile
	clock    ports.Clock
}

// NewCalibrator creates a calibrator with no fitted profiles.
func NewCalibrator(clock ports.Clock) *Calibrator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Calibrator{
		profiles: make(map[grievance.CaseType]prediction.CalibrationProfile),
		clock:    clock,
	}
}

// Calibrate fits a temperature and Platt profile for caseType from paired
// raw confidences (in [0,1]) and binary outcomes (1 = favorable).
func (c *Calibrator) Calibrate(caseType grievance.CaseType, predictions []float64, outcomes []int) (prediction.CalibrationProfile, error) {
	if len(predictions) == 0 {
		return prediction.CalibrationProfile{}, fmt.Errorf("%w: no prediction samples", core.ErrInsufficientData)
	}
	if len(predictions) != len(outcomes) {
		return prediction.CalibrationProfile{}, fmt.Errorf("%w: %d predictions vs %d outcomes",
			core.ErrInsufficientData, len(predictions), len(outcomes))
	}

	profile := prediction.CalibrationProfile{
		CaseType:         caseType,
		Temperature:      fitTemperature(predictions, outcomes),
		PlattWeights:     fitPlatt(predictions, outcomes),
		LastCalibrated:   core.NewTimestamp(c.clock.Now()),
		SampleSize:       len(predictions),
		BaselineAccuracy: accuracy(predictions, outcomes),
	}

	c.mu.Lock()
	c.profiles[caseType] = profile
	c.mu.Unlock()

	return profile, nil
}

// Apply recalibrates a raw confidence for caseType: temperature scaling
// first, then Platt scaling, then a clamp to [0.01, 0.99]. Without a fitted
// profile the input passes through (clamped), so callers never see an
// out-of-range probability.
func (c *Calibrator) Apply(caseType grievance.CaseType, rawConfidence float64) float64 {
	c.mu.RLock()
	profile, ok := c.profiles[caseType]
	c.mu.RUnlock()

	calibrated := rawConfidence
	if ok {
		calibrated = rawConfidence / profile.Temperature
		calibrated = sigmoid(profile.PlattWeights[0] + profile.PlattWeights[1]*calibrated)
	}
	if math.IsNaN(calibrated) {
		calibrated = rawConfidence
	}
	return clamp(calibrated, confidenceFloor, confidenceCeil)
}

// HasProfile reports whether caseType has a fitted profile.
func (c *Calibrator) HasProfile(caseType grievance.CaseType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.profiles[caseType]
	return ok
}

// Profile returns the fitted profile for caseType.
func (c *Calibrator) Profile(caseType grievance.CaseType) (prediction.CalibrationProfile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	profile, ok := c.profiles[caseType]
	if !ok {
		return prediction.CalibrationProfile{}, core.ErrProfileNotFound
	}
	return profile, nil
}

// Profiles returns a snapshot of every fitted profile.
func (c *Calibrator) Profiles() []prediction.CalibrationProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]prediction.CalibrationProfile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	return out
}

// NeedsRecalibration reports whether caseType should be refit: no profile
// yet, the profile is older than 30 days, or recent accuracy has dropped
// more than the threshold below the accuracy measured at fit time.
func (c *Calibrator) NeedsRecalibration(caseType grievance.CaseType, recentAccuracy float64) bool {
	c.mu.RLock()
	profile, ok := c.profiles[caseType]
	c.mu.RUnlock()

	if !ok {
		return true
	}
	if profile.LastCalibrated.Age(c.clock.Now()) > maxProfileAge {
		return true
	}
	return profile.BaselineAccuracy-recentAccuracy > accuracyDropThreshold
}

// fitTemperature grid-searches t in [0.1, 2.0] (step 0.1) minimizing mean
// negative log-likelihood of the scaled predictions. Strictly lower NLL
// wins, so ties keep the smallest t.
func fitTemperature(predictions []float64, outcomes []int) float64 {
	bestT := 1.0
	bestNLL := math.Inf(1)

	for i := 1; i <= int(math.Round(temperatureMax/temperatureStep)); i++ {
		t := float64(i) * temperatureStep
		if t < temperatureMin {
			continue
		}
		nll := 0.0
		for j, p := range predictions {
			scaled := clamp(p/t, 0.001, 0.999)
			y := float64(outcomes[j])
			nll -= y*math.Log(scaled) + (1-y)*math.Log(1-scaled)
		}
		nll /= float64(len(predictions))
		if nll < bestNLL {
			bestNLL = nll
			bestT = t
		}
	}
	return bestT
}

// fitPlatt runs batch gradient descent for a two-parameter logistic
// regression (intercept, slope), zero-initialized.
func fitPlatt(predictions []float64, outcomes []int) [2]float64 {
	var weights [2]float64
	n := float64(len(predictions))

	for epoch := 0; epoch < plattEpochs; epoch++ {
		var grad [2]float64
		for i, p := range predictions {
			prob := sigmoid(weights[0] + weights[1]*p)
			err := prob - float64(outcomes[i])
			grad[0] += err
			grad[1] += err * p
		}
		weights[0] -= plattLearningRate * grad[0] / n
		weights[1] -= plattLearningRate * grad[1] / n
	}
	return weights
}

// accuracy is the fraction of samples where the thresholded prediction
// agrees with the outcome.
func accuracy(predictions []float64, outcomes []int) float64 {
	hits := make([]float64, len(predictions))
	for i, p := range predictions {
		predicted := 0
		if p > 0.5 {
			predicted = 1
		}
		if predicted == outcomes[i] {
			hits[i] = 1
		}
	}
	return stat.Mean(hits, nil)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
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
