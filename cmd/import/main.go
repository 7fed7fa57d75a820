package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"steward/adapters/excel"
	"steward/adapters/extract"
	"steward/adapters/llm"
	"steward/adapters/postgres"
	"steward/internal/config"
	"steward/ports"
)

// Bulk-loads historical cases from CSV or XLSX files into the corpus.
// Embeds descriptions when a Gemini key is configured; stores bare cases
// otherwise.
func main() {
	_ = godotenv.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	dir := cfg.Import.DataDir
	if len(os.Args) > 1 {
		dir = os.Args[1]
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

	var embedder ports.Embedder
	if cfg.HasGemini() {
		gemini, err := llm.NewGemini(ctx, cfg.AI.GeminiKey,
			llm.WithGeminiModel(cfg.AI.GeminiModel),
			llm.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		)
		if err != nil {
			log.Warn().Err(err).Msg("gemini unavailable, importing without embeddings")
		} else {
			embedder = gemini
			defer gemini.Close()
		}
	}

	importer := excel.NewImporter(postgres.NewCaseRepository(db), extract.New(), embedder, ports.SystemClock{}, log)
	stats, err := importer.ImportDir(ctx, dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("import failed")
	}
	log.Info().
		Int("files", stats.FilesProcessed).
		Int("imported", stats.Imported).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("import complete")
}
