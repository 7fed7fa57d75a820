package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	GrievanceID ID
	CaseID      ID
	ModelID     ID
	FeedbackID  ID
	ErrorID     ID
)

// String conversions for domain IDs
func (id GrievanceID) String() string { return ID(id).String() }
func (id CaseID) String() string      { return ID(id).String() }
func (id ModelID) String() string     { return ID(id).String() }
func (id FeedbackID) String() string  { return ID(id).String() }
func (id ErrorID) String() string     { return ID(id).String() }

// ParseGrievanceID parses a string into GrievanceID
func ParseGrievanceID(s string) (GrievanceID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("grievance ID cannot be empty")
	}
	return GrievanceID(s), nil
}

// ParseCaseID parses a string into CaseID
func ParseCaseID(s string) (CaseID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("case ID cannot be empty")
	}
	return CaseID(s), nil
}

// ParseModelID parses a string into ModelID
func ParseModelID(s string) (ModelID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("model ID cannot be empty")
	}
	return ModelID(s), nil
}
