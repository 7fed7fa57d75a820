package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"steward/adapters/calibration"
	"steward/adapters/ensemble"
	"steward/adapters/erroranalysis"
	"steward/adapters/estimate"
	"steward/adapters/excel"
	"steward/adapters/extract"
	"steward/adapters/feedback"
	"steward/adapters/llm"
	"steward/adapters/postgres"
	"steward/adapters/similarity"
	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/internal/cache"
	"steward/internal/config"
	"steward/internal/maintenance"
	"steward/internal/predict"
	"steward/ports"
	"steward/ui"
)

func main() {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	repo := postgres.NewCaseRepository(db)

	rankCache := cache.New[[]prediction.RankedCase](
		cfg.Cache.MaxSize, cfg.Cache.TTL,
		cache.WithSweepInterval[[]prediction.RankedCase](cfg.Cache.SweepInterval),
	)
	defer rankCache.Close()

	generator, embedder := buildProviders(ctx, cfg, log)

	clock := ports.SystemClock{}
	extractor := extract.New()
	engine := predict.NewEngine(predict.Config{
		Repo:       repo,
		Extractor:  extractor,
		Scorer:     similarity.NewCachedScorer(rankCache, cfg.Cache.TTL),
		Estimator:  estimate.NewEstimator(),
		Calibrator: calibration.NewCalibrator(clock),
		Ensemble:   ensemble.NewPredictor(log),
		Learner:    feedback.NewLearner(clock),
		Analyzer:   erroranalysis.NewAnalyzer(clock),
		Generator:  generator,
		Embedder:   embedder,
		Log:        log,
	})
	registerModels(engine, cfg)

	if stat, err := os.Stat(cfg.Import.DataDir); err == nil && stat.IsDir() {
		importer := excel.NewImporter(repo, extractor, embedder, clock, log)
		if _, err := importer.ImportDir(ctx, cfg.Import.DataDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Import.DataDir).Msg("case import failed")
		}
	}

	scheduler, err := maintenance.New(engine, nil, log,
		cfg.Maintenance.RecalibrationSpec, cfg.Maintenance.StatsSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build maintenance scheduler")
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: ui.NewServer(engine, log).Handler(),
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildProviders assembles the generation failover chain and the embedder
// from whichever API keys are configured. With no keys the engine runs on
// the offline provider, so analysis narratives stay deterministic.
func buildProviders(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.Generator, ports.Embedder) {
	var providers []ports.Provider
	var embedder ports.Embedder

	if cfg.HasGemini() {
		gemini, err := llm.NewGemini(ctx, cfg.AI.GeminiKey,
			llm.WithGeminiModel(cfg.AI.GeminiModel),
			llm.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		)
		if err != nil {
			log.Warn().Err(err).Msg("gemini unavailable")
		} else {
			providers = append(providers, gemini)
			embedder = gemini
		}
	}
	if cfg.HasAnthropic() {
		providers = append(providers, llm.NewAnthropic(cfg.AI.AnthropicKey,
			llm.WithAnthropicModel(cfg.AI.AnthropicModel),
			llm.WithMaxTokens(cfg.AI.MaxTokens),
		))
	}

	static := llm.NewStatic("")
	providers = append(providers, static)
	if embedder == nil {
		embedder = static
	}

	return llm.NewChain(log, providers...), embedder
}

// registerModels adds the default ensemble members: one voting on precedent
// similarity, one on evidence strength.
func registerModels(engine *predict.Engine, cfg *config.Config) {
	engine.AddModel("precedent", func(ctx context.Context, text string) (prediction.Prediction, error) {
		similar, err := engine.SimilarCases(ctx, text, "", cfg.Similarity.Limit, cfg.Similarity.MinScore)
		if err != nil {
			return prediction.Prediction{}, err
		}
		outcome := grievance.OutcomeDenied
		confidence := 0.3
		if len(similar) > 0 {
			counts := map[grievance.Outcome]int{}
			best := 0
			for _, rc := range similar {
				o := rc.Case.Outcome
				if o == "" {
					continue
				}
				counts[o]++
				if counts[o] > best {
					best = counts[o]
					outcome = o
				}
			}
			confidence = similar[0].Similarity / 100
		}
		return prediction.Prediction{
			Outcome:           outcome,
			Confidence:        confidence,
			SimilarCasesFound: len(similar),
		}, nil
	}, 1.0)

	engine.AddModel("evidence", func(ctx context.Context, text string) (prediction.Prediction, error) {
		features := engine.ExtractFeatures(text, "")
		outcome := grievance.OutcomeDenied
		confidence := 0.4
		switch features.EvidenceStrength {
		case grievance.EvidenceHigh:
			outcome = grievance.OutcomeGranted
			confidence = 0.7
		case grievance.EvidenceMedium:
			confidence = 0.5
		}
		return prediction.Prediction{
			Outcome:    outcome,
			Confidence: confidence,
			CaseType:   features.CaseType,
		}, nil
	}, 1.0)
}
