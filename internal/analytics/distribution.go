package analytics

import (
	"sort"
	"strings"

	"github.com/study-analytics-engine/internal/domain"
)

const (
	// NormalLabel counts studies that carry no findings.
	NormalLabel = "Normal"
	// NoDataLabel is returned by TopDisease for an empty study set.
	NoDataLabel = "N/A"
)

// DiseaseDistribution counts studies per primary disease, with findings-less
// studies counted as Normal. Names are matched case-insensitively and shown
// with their first-encountered spelling. Ordered by count descending, ties by
// first appearance in studies.
func DiseaseDistribution(studies []domain.Study) []domain.DiseaseCount {
	type entry struct {
		count domain.DiseaseCount
		order int
	}
	entries := make(map[string]*entry)
	for i := range studies {
		name := NormalLabel
		if f := studies[i].Findings; f != nil && DiseaseKey(f.PrimaryDisease) != "" {
			name = strings.TrimSpace(f.PrimaryDisease)
		}
		key := DiseaseKey(name)
		e, ok := entries[key]
		if !ok {
			e = &entry{count: domain.DiseaseCount{Disease: name}, order: len(entries)}
			entries[key] = e
		}
		e.count.Count++
	}

	sorted := make([]*entry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count.Count != sorted[j].count.Count {
			return sorted[i].count.Count > sorted[j].count.Count
		}
		return sorted[i].order < sorted[j].order
	})

	out := make([]domain.DiseaseCount, len(sorted))
	for i, e := range sorted {
		out[i] = e.count
	}
	return out
}

// TopDisease is the most frequent primary disease, or "N/A" for no studies.
func TopDisease(studies []domain.Study) string {
	dist := DiseaseDistribution(studies)
	if len(dist) == 0 {
		return NoDataLabel
	}
	return dist[0].Disease
}
