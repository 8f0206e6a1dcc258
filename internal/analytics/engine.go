package analytics

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/study-analytics-engine/internal/domain"
)

// Engine serves the comparison and analytics contracts over snapshots pulled
// from a SnapshotSource. Each call reads exactly one snapshot and never
// touches the live store. Results are memoized by snapshot version and
// selection.
type Engine struct {
	source    domain.SnapshotSource
	logger    *logrus.Logger
	threshold float64
	scale     SeverityScale
	location  *time.Location
	clock     func() time.Time
	memo      *memo

	// last snapshot version that passed validation
	validVersion atomic.Uint64
}

// Option is a functional option for Engine.
type Option func(*Engine)

// WithClock overrides the time source used to anchor date ranges.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine creates an engine. The trend threshold and severity cutoffs in cfg
// apply uniformly to every query it serves.
func NewEngine(source domain.SnapshotSource, cfg domain.EngineConfig, logger *logrus.Logger, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if cfg.TrendThreshold < 0 {
		return nil, fmt.Errorf("trend threshold must not be negative: %v", cfg.TrendThreshold)
	}
	if cfg.SeverityMedium >= cfg.SeverityHigh {
		return nil, fmt.Errorf("severity medium cutoff %v must be below high cutoff %v", cfg.SeverityMedium, cfg.SeverityHigh)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must not be negative: %d", cfg.CacheSize)
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	m, err := newMemo(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo cache: %w", err)
	}

	if logger == nil {
		logger = logrus.New()
	}

	e := &Engine{
		source:    source,
		logger:    logger,
		threshold: cfg.TrendThreshold,
		scale:     SeverityScale{High: cfg.SeverityHigh, Medium: cfg.SeverityMedium},
		location:  loc,
		clock:     time.Now,
		memo:      m,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Threshold returns the trend threshold in effect.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// CacheStats returns memoization statistics.
func (e *Engine) CacheStats() CacheStats {
	return e.memo.stats()
}

// Purge drops every memoized result.
func (e *Engine) Purge() {
	e.memo.purge()
}

// snapshot reads one snapshot and verifies the invariants ordering relies on.
// A malformed snapshot is fatal for every derivation and is propagated.
func (e *Engine) snapshot() (domain.Snapshot, error) {
	snap := e.source.Snapshot()
	if snap.Version != 0 && snap.Version == e.validVersion.Load() {
		return snap, nil
	}
	if err := CheckSnapshot(snap.Studies); err != nil {
		e.logger.WithError(err).WithField("snapshot_version", snap.Version).Error("Rejected malformed snapshot")
		return snap, domain.WrapEngineError(domain.ErrCodeMalformedSnapshot, "snapshot failed validation", err)
	}
	if snap.Version != 0 {
		e.validVersion.Store(snap.Version)
	}
	return snap, nil
}

// CheckSnapshot rejects snapshots holding undated studies, duplicate ids or
// out-of-range scores.
func CheckSnapshot(studies []domain.Study) error {
	seen := make(map[string]struct{}, len(studies))
	for i := range studies {
		s := &studies[i]
		if s.OccurredAt.IsZero() {
			return fmt.Errorf("%w: study %q: %w", domain.ErrMalformedStudy, s.ID,
				domain.NewValidationError("occurred_at", "timestamp is required", s.OccurredAt))
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: study %q appears twice", domain.ErrMalformedStudy, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Findings != nil {
			if err := s.Findings.Validate(); err != nil {
				return fmt.Errorf("%w: study %q: %w", domain.ErrMalformedStudy, s.ID, err)
			}
		}
	}
	return nil
}

func (e *Engine) rangeAnchor(r domain.DateRange) (time.Time, error) {
	if !r.IsValid() {
		return time.Time{}, domain.WrapEngineError(domain.ErrCodeInvalidRange,
			fmt.Sprintf("unsupported date range %q", string(r)), domain.ErrInvalidRange)
	}
	return anchor(e.clock(), e.location), nil
}

func (e *Engine) debug(op string, snap domain.Snapshot, hit bool, fields logrus.Fields) {
	if !e.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	f := logrus.Fields{
		"operation":        op,
		"snapshot_version": snap.Version,
		"cache_hit":        hit,
	}
	for k, v := range fields {
		f[k] = v
	}
	e.logger.WithFields(f).Debug("Derivation served")
}

// Patients returns the patient directory filtered by a name or id substring.
func (e *Engine) Patients(term string) ([]domain.PatientSummary, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	key := cacheKey{op: "patients", version: snap.Version, patient: term}
	out, hit, err := memoize(e.memo, key, func() ([]domain.PatientSummary, error) {
		return SearchPatients(snap.Studies, term), nil
	}, cloneSlice[domain.PatientSummary])
	e.debug("patients", snap, hit, logrus.Fields{"results": len(out)})
	return out, err
}

// GetAvailableDiseases lists the diseases with at least one score for the
// patient. A patient without studies yields an empty list.
func (e *Engine) GetAvailableDiseases(patientID string) ([]string, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	key := cacheKey{op: "diseases", version: snap.Version, patient: patientID}
	out, hit, err := memoize(e.memo, key, func() ([]string, error) {
		return AvailableDiseases(TimelineFor(snap.Studies, patientID)), nil
	}, cloneSlice[string])
	e.debug("available_diseases", snap, hit, logrus.Fields{"patient_id": patientID, "results": len(out)})
	return out, err
}

// GetComparisonSeries projects the patient's timeline onto disease. A disease
// outside the available set yields an empty series, not an error.
func (e *Engine) GetComparisonSeries(patientID, disease string) ([]domain.ComparisonRecord, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return e.series(snap, patientID, disease)
}

func (e *Engine) series(snap domain.Snapshot, patientID, disease string) ([]domain.ComparisonRecord, error) {
	key := cacheKey{op: "series", version: snap.Version, patient: patientID, disease: DiseaseKey(disease)}
	out, hit, err := memoize(e.memo, key, func() ([]domain.ComparisonRecord, error) {
		return Project(TimelineFor(snap.Studies, patientID), disease), nil
	}, cloneSlice[domain.ComparisonRecord])
	e.debug("comparison_series", snap, hit, logrus.Fields{
		"patient_id": patientID,
		"disease":    disease,
		"records":    len(out),
	})
	return out, err
}

// GetTrend classifies the patient's series for disease.
func (e *Engine) GetTrend(patientID, disease string) (domain.Trend, error) {
	snap, err := e.snapshot()
	if err != nil {
		return domain.TrendNotApplicable, err
	}
	records, err := e.series(snap, patientID, disease)
	if err != nil {
		return domain.TrendNotApplicable, err
	}
	return Classify(records, e.threshold), nil
}

// GetDefaultDisease returns the disease a comparison screen opens on.
func (e *Engine) GetDefaultDisease(patientID string) (string, bool, error) {
	snap, err := e.snapshot()
	if err != nil {
		return "", false, err
	}
	key := cacheKey{op: "default_disease", version: snap.Version, patient: patientID}
	out, _, err := memoize(e.memo, key, func() (defaultDisease, error) {
		timeline := TimelineFor(snap.Studies, patientID)
		name, ok := DefaultDisease(timeline, AvailableDiseases(timeline))
		return defaultDisease{name: name, ok: ok}, nil
	}, identity[defaultDisease])
	return out.name, out.ok, err
}

// ViewOption adjusts a comparison view request.
type ViewOption func(*viewRequest)

type viewRequest struct {
	compareTo    string
	allExamTypes bool
}

// CompareAgainst picks the earlier study the latest point is compared with.
// An id that is not an earlier point of the plotted series is ignored and the
// second-to-last point is used.
func CompareAgainst(studyID string) ViewOption {
	return func(r *viewRequest) {
		r.compareTo = strings.TrimSpace(studyID)
	}
}

// AcrossExamTypes plots every study of the patient instead of only those
// sharing the latest study's modality and body region.
func AcrossExamTypes() ViewOption {
	return func(r *viewRequest) {
		r.allExamTypes = true
	}
}

// GetComparisonView assembles the progression review for one patient. Only
// studies of the latest exam type are considered unless AcrossExamTypes is
// given. An empty or unavailable disease falls back to the default disease.
func (e *Engine) GetComparisonView(patientID, disease string, opts ...ViewOption) (*domain.ComparisonView, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	var req viewRequest
	for _, opt := range opts {
		opt(&req)
	}
	key := cacheKey{
		op:      "view",
		version: snap.Version,
		patient: patientID,
		disease: DiseaseKey(disease),
		compare: req.compareTo,
		scope:   req.allExamTypes,
	}
	out, hit, err := memoize(e.memo, key, func() (*domain.ComparisonView, error) {
		return e.buildView(snap, patientID, disease, req), nil
	}, cloneView)
	if out != nil {
		e.debug("comparison_view", snap, hit, logrus.Fields{
			"patient_id":  patientID,
			"disease":     out.Disease,
			"records":     len(out.Points),
			"trend":       out.Trend,
			"exam_scoped": out.ExamScoped,
		})
	}
	return out, err
}

func (e *Engine) buildView(snap domain.Snapshot, patientID, requested string, req viewRequest) *domain.ComparisonView {
	timeline := TimelineFor(snap.Studies, patientID)

	view := &domain.ComparisonView{
		Patient:          domain.PatientSummary{PatientID: patientID},
		RequestedDisease: strings.TrimSpace(requested),
		Points:           []domain.ComparisonPoint{},
		Trend:            domain.TrendNotApplicable,
		SnapshotVersion:  snap.Version,
	}
	if patients := Patients(timeline); len(patients) > 0 {
		view.Patient = patients[0]
	}

	scope := timeline
	if exam, ok := LatestExamType(timeline); ok {
		view.ExamType = &exam
		if !req.allExamTypes {
			scope = SameExamType(timeline, exam)
			view.ExamScoped = true
		}
	}
	available := AvailableDiseases(scope)
	view.AvailableDiseases = available

	switch {
	case view.RequestedDisease != "" && IsAvailable(available, view.RequestedDisease):
		view.Disease = canonical(available, view.RequestedDisease)
	default:
		if d, ok := DefaultDisease(scope, available); ok {
			view.Disease = d
		}
	}

	if view.Disease != "" {
		records := Project(scope, view.Disease)
		view.Points = Annotate(records, e.scale)
		view.Trend = Classify(records, e.threshold)
		if n := len(records); n > 0 {
			view.LatestStudyID = records[n-1].StudyID
			if n > 1 {
				view.PreviousStudyID = previousPoint(records, req.compareTo)
			}
		}
	}
	view.Narrative = Narrative(view.Trend, view.Disease)
	return view
}

// previousPoint returns compareTo when it names an earlier record of the
// series, else the second-to-last record. records holds at least two entries.
func previousPoint(records []domain.ComparisonRecord, compareTo string) string {
	earlier := records[:len(records)-1]
	if compareTo != "" {
		for _, r := range earlier {
			if r.StudyID == compareTo {
				return r.StudyID
			}
		}
	}
	return earlier[len(earlier)-1].StudyID
}

// GetMonthlyAgreementTrend returns normalized calendar-month buckets for the
// studies inside r. Months without studies are omitted.
func (e *Engine) GetMonthlyAgreementTrend(r domain.DateRange) ([]domain.MonthlyBucket, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	now, err := e.rangeAnchor(r)
	if err != nil {
		return nil, err
	}
	key := cacheKey{op: "monthly", version: snap.Version, rng: r, now: now.Unix()}
	out, hit, err := memoize(e.memo, key, func() ([]domain.MonthlyBucket, error) {
		filtered, err := WithinRange(snap.Studies, r, now)
		if err != nil {
			return nil, err
		}
		return MonthlyAgreementTrend(filtered, e.location), nil
	}, cloneSlice[domain.MonthlyBucket])
	e.debug("monthly_agreement", snap, hit, logrus.Fields{"range": r, "buckets": len(out)})
	return out, err
}

// GetDiseaseDistribution counts primary diseases inside r.
func (e *Engine) GetDiseaseDistribution(r domain.DateRange) ([]domain.DiseaseCount, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	now, err := e.rangeAnchor(r)
	if err != nil {
		return nil, err
	}
	return e.distribution(snap, r, now)
}

func (e *Engine) distribution(snap domain.Snapshot, r domain.DateRange, now time.Time) ([]domain.DiseaseCount, error) {
	key := cacheKey{op: "distribution", version: snap.Version, rng: r, now: now.Unix()}
	out, hit, err := memoize(e.memo, key, func() ([]domain.DiseaseCount, error) {
		filtered, err := WithinRange(snap.Studies, r, now)
		if err != nil {
			return nil, err
		}
		return DiseaseDistribution(filtered), nil
	}, cloneSlice[domain.DiseaseCount])
	e.debug("disease_distribution", snap, hit, logrus.Fields{"range": r, "diseases": len(out)})
	return out, err
}

// GetTopDisease returns the most frequent primary disease inside r, or "N/A".
func (e *Engine) GetTopDisease(r domain.DateRange) (string, error) {
	snap, err := e.snapshot()
	if err != nil {
		return NoDataLabel, err
	}
	now, err := e.rangeAnchor(r)
	if err != nil {
		return NoDataLabel, err
	}
	dist, err := e.distribution(snap, r, now)
	if err != nil {
		return NoDataLabel, err
	}
	if len(dist) == 0 {
		return NoDataLabel, nil
	}
	return dist[0].Disease, nil
}

// GetSummary returns headline KPIs for r.
func (e *Engine) GetSummary(r domain.DateRange) (*domain.Summary, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	now, err := e.rangeAnchor(r)
	if err != nil {
		return nil, err
	}
	key := cacheKey{op: "summary", version: snap.Version, rng: r, now: now.Unix()}
	out, _, err := memoize(e.memo, key, func() (*domain.Summary, error) {
		filtered, err := WithinRange(snap.Studies, r, now)
		if err != nil {
			return nil, err
		}
		s := &domain.Summary{
			Range:           r,
			TotalStudies:    len(filtered),
			TopDisease:      TopDisease(filtered),
			GeneratedAt:     now,
			SnapshotVersion: snap.Version,
		}
		for i := range filtered {
			if filtered[i].HasFindings() {
				s.Analyzed++
			}
			if filtered[i].Priority == domain.PriorityUrgent {
				s.UrgentStudies++
			}
		}
		if s.TotalStudies > 0 {
			s.AnalysisRate = int(math.Round(float64(s.Analyzed) / float64(s.TotalStudies) * 100))
		}
		return s, nil
	}, cloneSummary)
	return out, err
}
