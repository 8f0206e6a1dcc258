package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/study-analytics-engine/internal/domain"
	"github.com/study-analytics-engine/internal/store"
)

type recorder struct {
	mu       sync.Mutex
	versions []uint64
	fail     bool
}

func (r *recorder) refresh(_ context.Context, version uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, version)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) snapshot() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.versions))
	copy(out, r.versions)
	return out
}

func (r *recorder) last() uint64 {
	v := r.snapshot()
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func addStudies(t *testing.T, s *store.MemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.Add(domain.Study{
			PatientID:  "P-1",
			Modality:   domain.ModalityCT,
			OccurredAt: time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
}

func startRefresher(t *testing.T, r *Refresher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func TestNewRefresher_Validation(t *testing.T) {
	s := store.NewMemoryStore(quietLogger())

	_, err := NewRefresher(nil, domain.WatchConfig{}, func(context.Context, uint64) error { return nil }, nil)
	assert.Error(t, err)

	_, err = NewRefresher(s, domain.WatchConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestRefresher_FollowsStoreVersions(t *testing.T) {
	s := store.NewMemoryStore(quietLogger())
	rec := &recorder{}

	r, err := NewRefresher(s, domain.WatchConfig{}, rec.refresh, quietLogger())
	require.NoError(t, err)
	cancel, done := startRefresher(t, r)

	addStudies(t, s, 5)

	require.Eventually(t, func() bool { return rec.last() == 5 }, 2*time.Second, 5*time.Millisecond)

	versions := rec.snapshot()
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresher_CoalescesBursts(t *testing.T) {
	s := store.NewMemoryStore(quietLogger())
	rec := &recorder{}

	r, err := NewRefresher(s, domain.WatchConfig{MinInterval: 50 * time.Millisecond, Burst: 1}, rec.refresh, quietLogger())
	require.NoError(t, err)
	cancel, done := startRefresher(t, r)
	defer func() {
		cancel()
		<-done
	}()

	addStudies(t, s, 20)

	require.Eventually(t, func() bool { return rec.last() == 20 }, 2*time.Second, 5*time.Millisecond)
	assert.Less(t, len(rec.snapshot()), 20)
}

func TestRefresher_ContinuesAfterFailure(t *testing.T) {
	s := store.NewMemoryStore(quietLogger())
	rec := &recorder{fail: true}

	r, err := NewRefresher(s, domain.WatchConfig{}, rec.refresh, quietLogger())
	require.NoError(t, err)
	cancel, done := startRefresher(t, r)
	defer func() {
		cancel()
		<-done
	}()

	addStudies(t, s, 1)
	require.Eventually(t, func() bool { return rec.last() == 1 }, 2*time.Second, 5*time.Millisecond)

	addStudies(t, s, 1)
	require.Eventually(t, func() bool { return rec.last() == 2 }, 2*time.Second, 5*time.Millisecond)
}
