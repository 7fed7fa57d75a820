package ports

import (
	"context"

	"steward/domain/core"
	"steward/domain/grievance"
)

// CaseRepository provides access to the historical-case corpus.
// Cases are read-only at prediction time; new cases arrive via import.
type CaseRepository interface {
	ListCases(ctx context.Context) ([]grievance.HistoricalCase, error)
	GetCase(ctx context.Context, id core.CaseID) (*grievance.HistoricalCase, error)
	InsertCase(ctx context.Context, c grievance.HistoricalCase) error
	CountCases(ctx context.Context) (int, error)
}
