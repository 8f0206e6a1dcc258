package analytics

import (
	"fmt"

	"github.com/study-analytics-engine/internal/domain"
)

// DefaultTrendThreshold is the score change, in points, that must be exceeded
// between the first and last record before a series counts as moving.
const DefaultTrendThreshold = 10.0

// Classify reduces a chronologically ordered series to a trend label by
// comparing its first and last scores. An empty series is NotApplicable and a
// single record is always Stable.
func Classify(records []domain.ComparisonRecord, threshold float64) domain.Trend {
	if len(records) == 0 {
		return domain.TrendNotApplicable
	}
	delta := records[len(records)-1].Score - records[0].Score
	switch {
	case delta < -threshold:
		return domain.TrendImproving
	case delta > threshold:
		return domain.TrendWorsening
	default:
		return domain.TrendStable
	}
}

// Narrative is the one-line reading of a trend shown under a progression chart.
func Narrative(trend domain.Trend, disease string) string {
	subject := disease
	if subject == "" {
		subject = "this disease"
	}
	switch trend {
	case domain.TrendImproving:
		return fmt.Sprintf("AI scores show consistent improvement for %s over the monitoring period.", subject)
	case domain.TrendWorsening:
		if disease == "" {
			subject = "disease"
		}
		return fmt.Sprintf("AI scores indicate potential %s progression. Consider clinical correlation.", subject)
	case domain.TrendStable:
		return fmt.Sprintf("AI scores for %s remain relatively stable across scans.", subject)
	default:
		return "No scans available to plot progression."
	}
}
