package analytics

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/study-analytics-engine/internal/domain"
)

// cacheKey identifies one derivation: the snapshot version, the selection and,
// for range queries, the instant the window was anchored to.
type cacheKey struct {
	op      string
	version uint64
	patient string
	disease string
	rng     domain.DateRange
	now     int64
	compare string
	scope   bool
}

// CacheStats represents memoization performance statistics
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Bypassed int64 `json:"bypassed"`
	Entries  int   `json:"entries"`
}

type memo struct {
	cache    *lru.Cache[cacheKey, any]
	hits     atomic.Int64
	misses   atomic.Int64
	bypassed atomic.Int64
}

func newMemo(size int) (*memo, error) {
	m := &memo{}
	if size <= 0 {
		return m, nil
	}
	cache, err := lru.New[cacheKey, any](size)
	if err != nil {
		return nil, err
	}
	m.cache = cache
	return m, nil
}

func (m *memo) stats() CacheStats {
	s := CacheStats{
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
		Bypassed: m.bypassed.Load(),
	}
	if m.cache != nil {
		s.Entries = m.cache.Len()
	}
	return s
}

func (m *memo) purge() {
	if m.cache != nil {
		m.cache.Purge()
	}
}

// memoize serves key from the cache or computes and stores it. Unversioned
// snapshots are never cached since a stale hit could not be detected. Every
// returned value passes through clone so callers own their result.
func memoize[T any](m *memo, key cacheKey, compute func() (T, error), clone func(T) T) (T, bool, error) {
	if m.cache == nil || key.version == 0 {
		m.bypassed.Add(1)
		v, err := compute()
		return v, false, err
	}

	if cached, ok := m.cache.Get(key); ok {
		if v, ok := cached.(T); ok {
			m.hits.Add(1)
			return clone(v), true, nil
		}
	}

	m.misses.Add(1)
	v, err := compute()
	if err != nil {
		var zero T
		return zero, false, err
	}
	m.cache.Add(key, v)
	return clone(v), false, nil
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func identity[T any](v T) T {
	return v
}

func cloneView(v *domain.ComparisonView) *domain.ComparisonView {
	if v == nil {
		return nil
	}
	c := *v
	if v.ExamType != nil {
		exam := *v.ExamType
		c.ExamType = &exam
	}
	c.AvailableDiseases = cloneSlice(v.AvailableDiseases)
	c.Points = cloneSlice(v.Points)
	return &c
}

func cloneSummary(s *domain.Summary) *domain.Summary {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

type defaultDisease struct {
	name string
	ok   bool
}

// anchor fixes the instant a range query is evaluated at. Truncating to the
// second lets repeated calls share a cache entry while the computation itself
// uses exactly the keyed instant.
func anchor(now time.Time, loc *time.Location) time.Time {
	return now.In(loc).Truncate(time.Second)
}
