package analytics

import (
	"sort"
	"strings"

	"github.com/study-analytics-engine/internal/domain"
)

// TimelineFor returns the patient's studies ordered by OccurredAt, ties broken
// by study id. The result is a fresh slice; studies are shallow copies.
func TimelineFor(studies []domain.Study, patientID string) []domain.Study {
	timeline := make([]domain.Study, 0)
	for i := range studies {
		if studies[i].PatientID == patientID {
			timeline = append(timeline, studies[i])
		}
	}
	SortChronologically(timeline)
	return timeline
}

// SortChronologically sorts studies in place by (OccurredAt, ID).
func SortChronologically(studies []domain.Study) {
	sort.SliceStable(studies, func(i, j int) bool {
		a, b := studies[i].OccurredAt, studies[j].OccurredAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return studies[i].ID < studies[j].ID
	})
}

// AvailableDiseases lists every disease with at least one usable score in the
// timeline, deduplicated case-insensitively and sorted by normalized name.
// The spelling shown is the first one seen in timeline order.
func AvailableDiseases(timeline []domain.Study) []string {
	display := make(map[string]string)
	add := func(name string) {
		key := DiseaseKey(name)
		if key == "" {
			return
		}
		if _, ok := display[key]; !ok {
			display[key] = name
		}
	}

	for i := range timeline {
		f := timeline[i].Findings
		if f == nil {
			continue
		}
		add(f.PrimaryDisease)
		for _, sf := range f.Secondary {
			if sf.Score > 0 {
				add(sf.Name)
			}
		}
	}

	keys := make([]string, 0, len(display))
	for k := range display {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	diseases := make([]string, len(keys))
	for i, k := range keys {
		diseases[i] = strings.TrimSpace(display[k])
	}
	return diseases
}

// IsAvailable reports whether disease is in the available set.
func IsAvailable(available []string, disease string) bool {
	key := DiseaseKey(disease)
	for _, d := range available {
		if DiseaseKey(d) == key {
			return true
		}
	}
	return false
}
