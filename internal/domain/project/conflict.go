package project

import (
	"fmt"
	"strings"
)

type ConflictKind string

const (
	ConflictExact     ConflictKind = "exact"
	ConflictPotential ConflictKind = "potential"
)

type Conflict struct {
	RowNumber       int          `json:"rowNumber"`
	SiteCode        string       `json:"siteCode"`
	Kind            ConflictKind `json:"conflictType"`
	DifferingFields []string     `json:"differingFields"`
	Existing        SiteSnapshot `json:"existingRecord"`
	Incoming        SiteSnapshot `json:"incomingRecord"`
}

type Resolution string

const (
	ResolutionOverride Resolution = "override"
	ResolutionSkip     Resolution = "skip"
)

func ParseResolution(raw string) (Resolution, error) {
	switch Resolution(strings.ToLower(strings.TrimSpace(raw))) {
	case ResolutionOverride:
		return ResolutionOverride, nil
	case ResolutionSkip:
		return ResolutionSkip, nil
	default:
		return "", fmt.Errorf("%w: action %q", ErrInvalidResolution, raw)
	}
}

// Resolutions maps a 1-based data row number to the operator's decision.
type Resolutions map[int]Resolution

// Missing returns the row numbers of conflicts that have no decision.
func (r Resolutions) Missing(conflicts []Conflict) []int {
	var missing []int
	for _, conflict := range conflicts {
		if _, ok := r[conflict.RowNumber]; !ok {
			missing = append(missing, conflict.RowNumber)
		}
	}
	return missing
}
