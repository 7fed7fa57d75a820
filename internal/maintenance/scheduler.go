package maintenance

import (
	"context"
	"fmt"
	"time"

	"steward/domain/grievance"
	"steward/internal/predict"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// AccuracyFunc reports the recent prediction accuracy for a case type, in
// [0,1]. Used by the recalibration check; return 1 when no recent data
// exists so only missing or stale profiles trigger.
type AccuracyFunc func(caseType grievance.CaseType) float64

// Scheduler runs the engine's periodic upkeep: a recalibration check per
// case type and an engine stats snapshot for the logs.
type Scheduler struct {
	cron     *cron.Cron
	engine   *predict.Engine
	accuracy AccuracyFunc
	log      zerolog.Logger
}

// New builds a scheduler with the given cron specs (standard five-field
// syntax). A nil accuracy function defaults to "no recent data".
func New(engine *predict.Engine, accuracy AccuracyFunc, log zerolog.Logger, recalibrationSpec, statsSpec string) (*Scheduler, error) {
	if accuracy == nil {
		accuracy = func(grievance.CaseType) float64 { return 1 }
	}
	s := &Scheduler{
		cron:     cron.New(),
		engine:   engine,
		accuracy: accuracy,
		log:      log,
	}

	if _, err := s.cron.AddFunc(recalibrationSpec, s.checkRecalibration); err != nil {
		return nil, fmt.Errorf("invalid recalibration schedule %q: %w", recalibrationSpec, err)
	}
	if _, err := s.cron.AddFunc(statsSpec, s.logStats); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", statsSpec, err)
	}

	return s, nil
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("maintenance scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("maintenance scheduler stopped")
}

func (s *Scheduler) checkRecalibration() {
	var stale []grievance.CaseType
	for _, caseType := range grievance.AllCaseTypes() {
		if s.engine.NeedsRecalibration(caseType, s.accuracy(caseType)) {
			stale = append(stale, caseType)
		}
	}
	if len(stale) == 0 {
		s.log.Debug().Msg("all calibration profiles current")
		return
	}
	s.log.Warn().
		Interface("case_types", stale).
		Msg("calibration profiles missing, stale, or underperforming")
}

func (s *Scheduler) logStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := s.engine.Stats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to gather engine stats")
		return
	}
	s.log.Info().
		Int("corpus_size", stats.CorpusSize).
		Int("ensemble_models", len(stats.EnsembleModels)).
		Int("feedback_entries", stats.Feedback.TotalFeedback).
		Int("calibration_profiles", len(stats.CalibrationProfiles)).
		Int("cache_size", stats.SimilarityCache.Size).
		Msg("engine stats")
}
