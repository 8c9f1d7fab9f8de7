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
	ModelID ID
	PlanID  ID
	RunID   ID
)

// ChannelKey identifies a marketing lever (e.g. "display_hcp", "meetings").
type ChannelKey string

// RegionCode identifies a geography (DMA code) a model is fitted for.
type RegionCode string

// String conversions for domain IDs
func (id ModelID) String() string   { return ID(id).String() }
func (id PlanID) String() string    { return ID(id).String() }
func (id RunID) String() string     { return ID(id).String() }
func (k ChannelKey) String() string { return string(k) }
func (r RegionCode) String() string { return string(r) }

// ParseModelID parses a string into ModelID
func ParseModelID(s string) (ModelID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("model ID cannot be empty")
	}
	return ModelID(s), nil
}

// ParsePlanID parses a string into PlanID
func ParsePlanID(s string) (PlanID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("plan ID cannot be empty")
	}
	return PlanID(s), nil
}

// ParseChannelKey parses a string into ChannelKey
func ParseChannelKey(s string) (ChannelKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("channel key cannot be empty")
	}
	return ChannelKey(s), nil
}
