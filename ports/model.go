package ports

import (
	"context"

	"steward/domain/prediction"
)

// ModelFunc is one ensemble member: an async capability that turns grievance
// text into a prediction. Failures are tolerated as long as at least one
// member succeeds.
type ModelFunc func(ctx context.Context, grievanceText string) (prediction.Prediction, error)
