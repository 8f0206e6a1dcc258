// Package store holds the live study collection and hands out immutable
// snapshots of it.
package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/study-analytics-engine/internal/domain"
)

// IDPrefix is prepended to generated study ids.
const IDPrefix = "STU-"

// MemoryStore is an in-memory StudyStore. Insertion order is preserved and
// is the order studies appear in snapshots.
type MemoryStore struct {
	mu          sync.RWMutex
	studies     []domain.Study
	index       map[string]int
	version     uint64
	subscribers map[int]chan uint64
	nextSub     int
	logger      *logrus.Logger
	clock       func() time.Time
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStore) {
		s.clock = clock
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *logrus.Logger, opts ...Option) *MemoryStore {
	if logger == nil {
		logger = logrus.New()
	}
	s := &MemoryStore{
		index:       make(map[string]int),
		subscribers: make(map[int]chan uint64),
		logger:      logger,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID generates a study id.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// Add inserts a study. An empty id is assigned; an id already present is
// rejected with ErrDuplicateStudy.
func (s *MemoryStore) Add(study domain.Study) (domain.Study, error) {
	if strings.TrimSpace(study.ID) == "" {
		study.ID = NewID()
	}
	if study.Status == "" {
		study.Status = domain.StatusNew
	}
	if study.Priority == "" {
		study.Priority = domain.PriorityRoutine
	}
	if err := study.Validate(); err != nil {
		return domain.Study{}, domain.WrapEngineError(domain.ErrCodeValidation, "study failed validation", err)
	}

	s.mu.Lock()
	if _, exists := s.index[study.ID]; exists {
		s.mu.Unlock()
		return domain.Study{}, domain.WrapEngineError(domain.ErrCodeDuplicateStudy,
			fmt.Sprintf("study %s already exists", study.ID), domain.ErrDuplicateStudy)
	}
	stored := study.Clone()
	s.index[stored.ID] = len(s.studies)
	s.studies = append(s.studies, stored)
	version := s.bumpLocked()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields(stored.LogFields())).WithField("snapshot_version", version).Info("Study added")
	return stored.Clone(), nil
}

// Update changes a study's status and, when findings is non-nil, replaces its
// findings. Identity and timestamp are never touched.
func (s *MemoryStore) Update(id string, status domain.StudyStatus, findings *domain.Findings) (domain.Study, error) {
	if !status.IsValid() {
		return domain.Study{}, domain.WrapEngineError(domain.ErrCodeValidation, "invalid status",
			domain.NewValidationError("status", "unknown status", status))
	}
	if findings != nil {
		if err := findings.Validate(); err != nil {
			return domain.Study{}, domain.WrapEngineError(domain.ErrCodeValidation, "findings failed validation", err)
		}
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return domain.Study{}, notFound(id)
	}
	s.studies[i].Status = status
	if findings != nil {
		s.studies[i].Findings = findings.Clone()
	}
	updated := s.studies[i].Clone()
	version := s.bumpLocked()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields(updated.LogFields())).WithField("snapshot_version", version).Info("Study updated")
	return updated, nil
}

// Upsert adds the study or overwrites the mutable fields of an existing one.
// Moving an existing study in time is rejected because timelines key on it.
func (s *MemoryStore) Upsert(study domain.Study) (domain.Study, bool, error) {
	if strings.TrimSpace(study.ID) == "" {
		added, err := s.Add(study)
		return added, true, err
	}
	if err := study.Validate(); err != nil {
		return domain.Study{}, false, domain.WrapEngineError(domain.ErrCodeValidation, "study failed validation", err)
	}

	s.mu.Lock()
	i, ok := s.index[study.ID]
	if !ok {
		s.mu.Unlock()
		added, err := s.Add(study)
		return added, true, err
	}
	if !s.studies[i].OccurredAt.Equal(study.OccurredAt) {
		s.mu.Unlock()
		return domain.Study{}, false, timestampMoved(study)
	}
	s.studies[i] = study.Clone()
	updated := s.studies[i].Clone()
	version := s.bumpLocked()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields(updated.LogFields())).WithField("snapshot_version", version).Debug("Study replaced")
	return updated, false, nil
}

// UpsertBatch applies studies as one change. Either every study is stored and
// the version moves once, or the store is left untouched. Within the batch a
// later study with the same id replaces the earlier one.
func (s *MemoryStore) UpsertBatch(studies []domain.Study) (added, updated int, err error) {
	staged := make([]domain.Study, len(studies))
	for i, study := range studies {
		if strings.TrimSpace(study.ID) == "" {
			study.ID = NewID()
		}
		if study.Status == "" {
			study.Status = domain.StatusNew
		}
		if study.Priority == "" {
			study.Priority = domain.PriorityRoutine
		}
		if err := study.Validate(); err != nil {
			return 0, 0, domain.WrapEngineError(domain.ErrCodeValidation,
				fmt.Sprintf("study %s failed validation", study.ID), err)
		}
		staged[i] = study.Clone()
	}

	s.mu.Lock()
	seen := make(map[string]time.Time, len(staged))
	for _, study := range staged {
		at, ok := seen[study.ID]
		if !ok {
			if i, exists := s.index[study.ID]; exists {
				at, ok = s.studies[i].OccurredAt, true
			}
		}
		if ok && !at.Equal(study.OccurredAt) {
			s.mu.Unlock()
			return 0, 0, timestampMoved(study)
		}
		seen[study.ID] = study.OccurredAt
	}

	for _, study := range staged {
		if i, exists := s.index[study.ID]; exists {
			s.studies[i] = study
			updated++
			continue
		}
		s.index[study.ID] = len(s.studies)
		s.studies = append(s.studies, study)
		added++
	}
	version := s.version
	if len(staged) > 0 {
		version = s.bumpLocked()
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"added":            added,
		"updated":          updated,
		"snapshot_version": version,
	}).Debug("Study batch applied")
	return added, updated, nil
}

// Get returns a copy of one study.
func (s *MemoryStore) Get(id string) (domain.Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Study{}, notFound(id)
	}
	return s.studies[i].Clone(), nil
}

// Snapshot returns a deep copy of the collection. Later mutations never show
// through it.
func (s *MemoryStore) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	studies := make([]domain.Study, len(s.studies))
	for i := range s.studies {
		studies[i] = s.studies[i].Clone()
	}
	return domain.Snapshot{
		Version: s.version,
		TakenAt: s.clock(),
		Studies: studies,
	}
}

// Version returns the current mutation counter.
func (s *MemoryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of stored studies.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.studies)
}

// Subscribe registers for change notifications. The channel carries the
// newest version and holds at most one pending value, so slow readers see
// coalesced updates rather than blocking writers. Call the returned function
// to unsubscribe.
func (s *MemoryStore) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// bumpLocked increments the version and notifies subscribers. Caller holds mu.
func (s *MemoryStore) bumpLocked() uint64 {
	s.version++
	for _, ch := range s.subscribers {
		select {
		case ch <- s.version:
		default:
			// drop the stale pending value and replace it
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.version:
			default:
			}
		}
	}
	return s.version
}

func timestampMoved(study domain.Study) error {
	return domain.WrapEngineError(domain.ErrCodeValidation,
		fmt.Sprintf("study %s cannot change its timestamp", study.ID),
		domain.NewValidationError("occurred_at", "timestamp is immutable", study.OccurredAt))
}

func notFound(id string) error {
	return domain.WrapEngineError(domain.ErrCodeStudyNotFound,
		fmt.Sprintf("study %s not found", id), domain.ErrNotFound)
}

var (
	_ domain.StudyStore     = (*MemoryStore)(nil)
	_ domain.ChangeNotifier = (*MemoryStore)(nil)
)
