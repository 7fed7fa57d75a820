package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"steward/adapters/extract"
	"steward/domain/core"
	"steward/domain/grievance"
	"steward/ports"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ImportStats summarizes one import run.
type ImportStats struct {
	FilesProcessed int `json:"files_processed"`
	Imported       int `json:"imported"`
	Skipped        int `json:"skipped"`
	Errors         int `json:"errors"`
}

// Importer loads historical cases from Excel or CSV files: each row's
// description is run through feature extraction, optionally embedded, and
// stored in the case repository.
type Importer struct {
	repo      ports.CaseRepository
	extractor *extract.Extractor
	embedder  ports.Embedder
	clock     ports.Clock
	log       zerolog.Logger
}

// NewImporter creates an importer. The embedder may be nil; cases are then
// stored without embeddings and similarity falls back to feature matching.
func NewImporter(repo ports.CaseRepository, extractor *extract.Extractor, embedder ports.Embedder, clock ports.Clock, log zerolog.Logger) *Importer {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Importer{
		repo:      repo,
		extractor: extractor,
		embedder:  embedder,
		clock:     clock,
		log:       log,
	}
}

// ImportDir imports every .csv and .xlsx file in dir.
func (im *Importer) ImportDir(ctx context.Context, dir string) (ImportStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ImportStats{}, fmt.Errorf("read import directory: %w", err)
	}

	var total ImportStats
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		stats, err := im.ImportFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return total, err
		}
		total.FilesProcessed += stats.FilesProcessed
		total.Imported += stats.Imported
		total.Skipped += stats.Skipped
		total.Errors += stats.Errors
	}
	return total, nil
}

// ImportFile imports one spreadsheet. The first row must be a header; the
// description column is required, case type and outcome are matched by a
// few common header spellings.
func (im *Importer) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	rows, err := readRows(path)
	if err != nil {
		return ImportStats{}, err
	}
	if len(rows) < 2 {
		return ImportStats{}, fmt.Errorf("file %s must have a header row and at least one data row", path)
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return ImportStats{}, fmt.Errorf("file %s: %w", path, err)
	}

	stats := ImportStats{FilesProcessed: 1}
	for _, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		description := cell(row, cols.description)
		if strings.TrimSpace(description) == "" {
			stats.Skipped++
			continue
		}

		hinted := grievance.CaseType(strings.ToLower(strings.TrimSpace(cell(row, cols.caseType))))
		features := im.extractor.Extract(description, hinted)
		features.Outcome = normalizeOutcome(cell(row, cols.outcome))

		c := grievance.HistoricalCase{
			ID:        core.CaseID(core.NewID()),
			Features:  features,
			Outcome:   features.Outcome,
			CreatedAt: core.NewTimestamp(im.clock.Now()),
		}

		if im.embedder != nil {
			embedding, err := im.embedder.Embed(ctx, description)
			if err != nil {
				im.log.Warn().Err(err).Msg("embedding failed, storing case without vector")
			} else {
				c.Embedding = embedding.Values
				c.Provider = embedding.Provider
			}
		}

		if err := im.repo.InsertCase(ctx, c); err != nil {
			stats.Errors++
			if stats.Errors <= 10 {
				im.log.Error().Err(err).Msg("failed to insert case")
			}
			continue
		}
		stats.Imported++
		if stats.Imported%1000 == 0 {
			im.log.Info().Int("imported", stats.Imported).Str("file", path).Msg("import progress")
		}
	}

	im.log.Info().
		Str("file", path).
		Int("imported", stats.Imported).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("import complete")
	return stats, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open CSV file: %w", err)
		}
		defer file.Close()
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read CSV file: %w", err)
		}
		return rows, nil
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open Excel file: %w", err)
		}
		defer f.Close()
		rows, err := f.GetRows("Sheet1")
		if err != nil {
			return nil, fmt.Errorf("read Sheet1: %w", err)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

type columnIndexes struct {
	description int
	caseType    int
	outcome     int
}

var headerAliases = map[string][]string{
	"description": {"description", "case description", "summary", "decision", "allegation"},
	"caseType":    {"case type", "type", "category"},
	"outcome":     {"outcome", "result", "disposition"},
}

func mapColumns(header []string) (columnIndexes, error) {
	cols := columnIndexes{description: -1, caseType: -1, outcome: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.description == -1 && matchesAlias(name, "description"):
			cols.description = i
		case cols.caseType == -1 && matchesAlias(name, "caseType"):
			cols.caseType = i
		case cols.outcome == -1 && matchesAlias(name, "outcome"):
			cols.outcome = i
		}
	}
	if cols.description == -1 {
		return cols, fmt.Errorf("no description column found in header")
	}
	return cols, nil
}

func matchesAlias(name, key string) bool {
	for _, alias := range headerAliases[key] {
		if name == alias {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// normalizeOutcome folds the spellings seen in exported case files into
// the three canonical outcomes. Unknown values stay empty.
func normalizeOutcome(raw string) grievance.Outcome {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "granted", "sustained", "upheld", "won":
		return grievance.OutcomeGranted
	case "denied", "dismissed", "lost":
		return grievance.OutcomeDenied
	case "settled", "settlement", "withdrawn with settlement":
		return grievance.OutcomeSettled
	default:
		return ""
	}
}
