package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"steward/domain/core"
	"steward/domain/grievance"
	"steward/ports"

	"github.com/jmoiron/sqlx"
)

// caseRepository implements the CaseRepository interface
type caseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository creates a new historical-case repository
func NewCaseRepository(db *sqlx.DB) ports.CaseRepository {
	return &caseRepository{db: db}
}

// InsertCase stores one historical case. Features and the embedding are
// kept as JSONB so the schema survives feature-set changes.
func (r *caseRepository) InsertCase(ctx context.Context, c grievance.HistoricalCase) error {
	featuresJSON, err := json.Marshal(c.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}
	embeddingJSON, err := json.Marshal(c.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `INSERT INTO historical_cases (
		id, features, outcome, embedding, provider, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6
	)`

	_, err = r.db.ExecContext(ctx, query,
		c.ID, featuresJSON, c.Outcome, embeddingJSON, c.Provider, c.CreatedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}

	return nil
}

// GetCase retrieves a historical case by its ID
func (r *caseRepository) GetCase(ctx context.Context, id core.CaseID) (*grievance.HistoricalCase, error) {
	query := `SELECT
		id, features, outcome, COALESCE(embedding, 'null') as embedding, COALESCE(provider, '') as provider, created_at
	FROM historical_cases WHERE id = $1`

	c, err := scanCase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: case %s", core.ErrCaseNotFound, id)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// ListCases retrieves every historical case, oldest first
func (r *caseRepository) ListCases(ctx context.Context) ([]grievance.HistoricalCase, error) {
	query := `SELECT
		id, features, outcome, COALESCE(embedding, 'null') as embedding, COALESCE(provider, '') as provider, created_at
	FROM historical_cases
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []grievance.HistoricalCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cases: %w", err)
	}

	return cases, nil
}

// CountCases returns the corpus size
func (r *caseRepository) CountCases(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_cases`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*grievance.HistoricalCase, error) {
	var c grievance.HistoricalCase
	var featuresJSON, embeddingJSON []byte
	var createdAt sql.NullTime

	err := row.Scan(&c.ID, &featuresJSON, &c.Outcome, &embeddingJSON, &c.Provider, &createdAt)
	if err != nil {
		return nil, err
	}

	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &c.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features: %w", err)
		}
	}
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &c.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	if createdAt.Valid {
		c.CreatedAt = core.NewTimestamp(createdAt.Time)
	}

	return &c, nil
}
