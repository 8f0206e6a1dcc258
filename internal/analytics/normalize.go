package analytics

import (
	"fmt"
	"math"

	"github.com/study-analytics-engine/internal/domain"
)

// Normalize converts a bucket's raw counts to whole percentages.
// The disagree share is derived from the agree share so the pair always sums
// to exactly 100 when Total > 0. An empty bucket yields (0, 0).
func Normalize(b domain.MonthlyBucket) (agree, disagree int) {
	if b.Total <= 0 {
		return 0, 0
	}
	ratio := float64(b.Analyzed) / float64(b.Total) * 100
	agree = int(math.Round(ratio))
	if agree > 100 {
		agree = 100
	}
	if agree < 0 {
		agree = 0
	}
	disagree = 100 - agree
	return agree, disagree
}

// SampleAnnotation is the "N = total" label displayed next to percentages.
func SampleAnnotation(total int) string {
	return fmt.Sprintf("N = %d", total)
}

// NormalizeBuckets returns a copy of buckets with percentages and sample
// annotations filled in. Raw counts are retained.
func NormalizeBuckets(buckets []domain.MonthlyBucket) []domain.MonthlyBucket {
	out := make([]domain.MonthlyBucket, len(buckets))
	for i, b := range buckets {
		b.AgreePercent, b.DisagreePercent = Normalize(b)
		b.SampleAnnotation = SampleAnnotation(b.Total)
		out[i] = b
	}
	return out
}
