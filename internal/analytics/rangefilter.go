package analytics

import (
	"fmt"
	"time"

	"github.com/study-analytics-engine/internal/domain"
)

const thirtyDays = 30 * 24 * time.Hour

// WithinRange keeps the studies that fall inside a rolling window ending at now.
//
// The 30 day window measures elapsed time. The 6 and 12 month windows compare
// calendar months in now's location, so a study from the first day of the
// month five months back is included even when more than 150 days old.
func WithinRange(studies []domain.Study, r domain.DateRange, now time.Time) ([]domain.Study, error) {
	var keep func(t time.Time) bool
	switch r {
	case domain.RangeLast30Days:
		keep = func(t time.Time) bool {
			return now.Sub(t) <= thirtyDays
		}
	case domain.RangeLast6Months:
		keep = func(t time.Time) bool {
			return monthsBetween(t.In(now.Location()), now) < 6
		}
	case domain.RangeLast12Months:
		keep = func(t time.Time) bool {
			return monthsBetween(t.In(now.Location()), now) < 12
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRange, string(r))
	}

	filtered := make([]domain.Study, 0, len(studies))
	for i := range studies {
		if keep(studies[i].OccurredAt) {
			filtered = append(filtered, studies[i])
		}
	}
	return filtered, nil
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()*12 + int(to.Month())) - (from.Year()*12 + int(from.Month()))
}
