// Package analytics derives longitudinal comparisons, trends and monthly
// agreement aggregates from immutable study snapshots. Every function here is a
// pure read over its arguments; the Engine adds snapshot sourcing, validation
// and memoization on top.
package analytics

import (
	"strings"

	"github.com/study-analytics-engine/internal/domain"
)

// DiseaseKey is the case-normalized form used for all disease matching.
func DiseaseKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ScoreFor resolves a disease to its score within one study.
//
// The primary disease wins over a secondary entry of the same name. A stored
// secondary score of zero counts as absent: it cannot be told apart from a
// finding that was never evaluated.
func ScoreFor(study *domain.Study, disease string) (float64, bool) {
	if study == nil || study.Findings == nil {
		return 0, false
	}
	key := DiseaseKey(disease)
	if key == "" {
		return 0, false
	}

	f := study.Findings
	if DiseaseKey(f.PrimaryDisease) == key {
		return f.PrimaryScore, true
	}
	for _, sf := range f.Secondary {
		if sf.Score > 0 && DiseaseKey(sf.Name) == key {
			return sf.Score, true
		}
	}
	return 0, false
}
