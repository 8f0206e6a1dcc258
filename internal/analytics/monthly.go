package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/study-analytics-engine/internal/domain"
)

type monthKey struct {
	year  int
	month time.Month
}

// BucketByMonth groups studies by the calendar month of OccurredAt in loc
// (UTC when nil) and counts total, analyzed and not-analyzed studies.
//
// Only months that contain studies are emitted; gaps are never padded with
// zero rows. Output is ascending by (year, month). Percentages are left at
// zero; run NormalizeBuckets to fill them.
func BucketByMonth(studies []domain.Study, loc *time.Location) []domain.MonthlyBucket {
	if loc == nil {
		loc = time.UTC
	}

	counts := make(map[monthKey]*domain.MonthlyBucket)
	for i := range studies {
		t := studies[i].OccurredAt.In(loc)
		k := monthKey{year: t.Year(), month: t.Month()}
		b, ok := counts[k]
		if !ok {
			b = &domain.MonthlyBucket{
				MonthLabel: fmt.Sprintf("%s %d", k.month.String()[:3], k.year),
				MonthKey:   fmt.Sprintf("%04d-%02d", k.year, int(k.month)),
				Year:       k.year,
				Month:      int(k.month),
			}
			counts[k] = b
		}
		b.Total++
		if studies[i].HasFindings() {
			b.Analyzed++
		}
	}

	buckets := make([]domain.MonthlyBucket, 0, len(counts))
	for _, b := range counts {
		b.NotAnalyzed = b.Total - b.Analyzed
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Year != buckets[j].Year {
			return buckets[i].Year < buckets[j].Year
		}
		return buckets[i].Month < buckets[j].Month
	})
	return buckets
}

// MonthlyAgreementTrend buckets and normalizes in one pass.
func MonthlyAgreementTrend(studies []domain.Study, loc *time.Location) []domain.MonthlyBucket {
	return NormalizeBuckets(BucketByMonth(studies, loc))
}
