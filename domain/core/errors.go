package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrCaseNotFound      = fmt.Errorf("%w: historical case", ErrNotFound)
	ErrGrievanceNotFound = fmt.Errorf("%w: grievance", ErrNotFound)
	ErrProfileNotFound   = fmt.Errorf("%w: calibration profile", ErrNotFound)

	// Similarity errors
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrProviderMismatch  = errors.New("embeddings from different providers are not comparable")

	// Ensemble errors
	ErrNoModelsAvailable = errors.New("no models available for ensemble prediction")
	ErrUnknownStrategy   = errors.New("unknown voting strategy")

	// Feedback errors
	ErrInvalidFeedback = errors.New("malformed feedback payload")

	// Data errors
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewDimensionMismatchError(lenA, lenB int) error {
	return fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, lenA, lenB)
}

func NewUnknownStrategyError(strategy string) error {
	return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

func NewFeedbackError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidFeedback, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSimilarityError(err error) bool {
	return errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrProviderMismatch)
}

func IsEnsembleError(err error) bool {
	return errors.Is(err, ErrNoModelsAvailable) ||
		errors.Is(err, ErrUnknownStrategy)
}
