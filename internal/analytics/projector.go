package analytics

import (
	"strings"

	"github.com/study-analytics-engine/internal/domain"
)

// SeverityScale maps a score to a severity bucket: above High is High,
// above Medium is Medium, anything else is Low.
type SeverityScale struct {
	High   float64
	Medium float64
}

// DefaultSeverityScale uses the 85/70 cutoffs.
var DefaultSeverityScale = SeverityScale{High: 85, Medium: 70}

// Bucket returns the severity for score.
func (s SeverityScale) Bucket(score float64) domain.Severity {
	switch {
	case score > s.High:
		return domain.SeverityHigh
	case score > s.Medium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// Project maps each timeline study carrying a score for disease onto a
// ComparisonRecord. Studies without a score are dropped. Output keeps the
// timeline's chronological order, which Classify and chronological display
// depend on.
func Project(timeline []domain.Study, disease string) []domain.ComparisonRecord {
	records := make([]domain.ComparisonRecord, 0)
	label := strings.TrimSpace(disease)
	for i := range timeline {
		score, ok := ScoreFor(&timeline[i], disease)
		if !ok {
			continue
		}
		s := &timeline[i]
		records = append(records, domain.ComparisonRecord{
			StudyID:    s.ID,
			Date:       s.OccurredAt,
			Modality:   s.Modality,
			BodyRegion: s.BodyRegion,
			Score:      score,
			Disease:    label,
		})
	}
	return records
}

// DeltaAt is the score change from records[i-1] to records[i]. The baseline
// (i == 0) and out-of-range indexes have no delta.
func DeltaAt(records []domain.ComparisonRecord, i int) (float64, bool) {
	if i < 1 || i >= len(records) {
		return 0, false
	}
	return records[i].Score - records[i-1].Score, true
}

// Annotate attaches severity and delta to every record.
func Annotate(records []domain.ComparisonRecord, scale SeverityScale) []domain.ComparisonPoint {
	points := make([]domain.ComparisonPoint, len(records))
	for i, r := range records {
		delta, ok := DeltaAt(records, i)
		points[i] = domain.ComparisonPoint{
			ComparisonRecord: r,
			Severity:         scale.Bucket(r.Score),
			Delta:            delta,
			HasDelta:         ok,
		}
	}
	return points
}
