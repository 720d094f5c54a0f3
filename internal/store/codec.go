package store

import (
	"encoding/json"
	"fmt"

	"jobscout/pkg/models"
)

// EncodeAnalysis serialises the AI analysis column; nil encodes as an empty value
func EncodeAnalysis(a *models.Analysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode ai_analysis: %w", err)
	}
	return b, nil
}

// DecodeAnalysis is the inverse of EncodeAnalysis
func DecodeAnalysis(b []byte) (*models.Analysis, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a models.Analysis
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode ai_analysis: %w", err)
	}
	return &a, nil
}

// DefaultListLimit caps job listings when the filter leaves Limit unset
const DefaultListLimit = 200

// ListLimit returns the effective limit for a filter
func ListLimit(f models.JobFilter) int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultListLimit
	}
	return f.Limit
}
