// Package domain contains the core entities for imaging study review:
// studies, the AI findings attached to them, and the derived records the
// analytics engine produces for longitudinal comparison and fleet-wide
// agreement reporting.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Modality is the imaging technique used for a study.
type Modality string

const (
	ModalityXRay Modality = "X-ray"
	ModalityCT   Modality = "CT"
	ModalityMRI  Modality = "MRI"
)

// Priority is the clinical urgency assigned at intake.
type Priority string

const (
	PriorityRoutine Priority = "Routine"
	PriorityUrgent  Priority = "Urgent"
)

// StudyStatus tracks a study through intake, analysis and review.
type StudyStatus string

const (
	StatusNew       StudyStatus = "New"
	StatusAnalyzing StudyStatus = "Analyzing"
	StatusAnalyzed  StudyStatus = "Analyzed"
	StatusInReview  StudyStatus = "In Review"
	StatusFinalized StudyStatus = "Finalized"
)

// Severity is the coarse bucket a disease score falls into.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Trend is the qualitative direction of a disease score series.
// Lower scores mean lower probability of disease, so a falling series improves.
type Trend string

const (
	TrendImproving     Trend = "Improving"
	TrendWorsening     Trend = "Worsening"
	TrendStable        Trend = "Stable"
	TrendNotApplicable Trend = "N/A"
)

// DateRange is a rolling window applied to a snapshot before aggregation.
type DateRange string

const (
	RangeLast30Days   DateRange = "30d"
	RangeLast6Months  DateRange = "6m"
	RangeLast12Months DateRange = "12m"
)

// Score bounds for primary and secondary findings.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Validation errors for study data integrity
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateStudy = errors.New("duplicate study id")
	ErrInvalidRange   = errors.New("invalid date range")
	ErrMalformedStudy = errors.New("malformed study")
)

// IsValid reports whether m is one of the supported modalities.
func (m Modality) IsValid() bool {
	switch m {
	case ModalityXRay, ModalityCT, ModalityMRI:
		return true
	default:
		return false
	}
}

func (m Modality) String() string {
	return string(m)
}

// ParseModality accepts the canonical names plus a few common spellings.
func ParseModality(s string) (Modality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x-ray", "xray", "x ray", "cr", "dx":
		return ModalityXRay, nil
	case "ct":
		return ModalityCT, nil
	case "mri", "mr":
		return ModalityMRI, nil
	default:
		return "", fmt.Errorf("unknown modality %q", s)
	}
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	return p == PriorityRoutine || p == PriorityUrgent
}

func (p Priority) String() string {
	return string(p)
}

// ParsePriority is case-insensitive. An empty string means Routine.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "routine":
		return PriorityRoutine, nil
	case "urgent", "stat":
		return PriorityUrgent, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// IsValid reports whether s is a known lifecycle status.
func (s StudyStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusAnalyzing, StatusAnalyzed, StatusInReview, StatusFinalized:
		return true
	default:
		return false
	}
}

func (s StudyStatus) String() string {
	return string(s)
}

// ParseStudyStatus accepts the canonical names and the "AI Analyzed" label
// used by the review dashboard. An empty string means New.
func ParseStudyStatus(s string) (StudyStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "new":
		return StatusNew, nil
	case "analyzing":
		return StatusAnalyzing, nil
	case "analyzed", "ai analyzed":
		return StatusAnalyzed, nil
	case "in review", "inreview", "in_review":
		return StatusInReview, nil
	case "finalized":
		return StatusFinalized, nil
	default:
		return "", fmt.Errorf("unknown study status %q", s)
	}
}

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium", "moderate":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

func (t Trend) String() string {
	return string(t)
}

// HasData is false only for TrendNotApplicable, which callers render as a
// distinct "no data" state.
func (t Trend) HasData() bool {
	return t != TrendNotApplicable
}

// IsValid reports whether r is a supported rolling window.
func (r DateRange) IsValid() bool {
	switch r {
	case RangeLast30Days, RangeLast6Months, RangeLast12Months:
		return true
	default:
		return false
	}
}

func (r DateRange) String() string {
	return string(r)
}

// Label is the human readable window name.
func (r DateRange) Label() string {
	switch r {
	case RangeLast30Days:
		return "Last 30 days"
	case RangeLast6Months:
		return "Last 6 months"
	case RangeLast12Months:
		return "Last 12 months"
	default:
		return "Unknown range"
	}
}

// ParseDateRange accepts "30d", "6m", "12m" and the long forms
// "last30d", "last6m", "last12m".
func ParseDateRange(s string) (DateRange, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "last")
	v = strings.TrimPrefix(v, "_")
	switch DateRange(v) {
	case RangeLast30Days, RangeLast6Months, RangeLast12Months:
		return DateRange(v), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
}

// SecondaryFinding is a lower-ranked disease hypothesis within Findings.
type SecondaryFinding struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Findings is the AI output attached to a study once analysis completes.
type Findings struct {
	PrimaryDisease string             `json:"primary_disease"`
	PrimaryScore   float64            `json:"primary_score"`
	Severity       Severity           `json:"severity"`
	Confidence     float64            `json:"confidence"`
	Secondary      []SecondaryFinding `json:"secondary"`
}

// Validate checks score bounds and required fields.
func (f *Findings) Validate() error {
	if strings.TrimSpace(f.PrimaryDisease) == "" {
		return NewValidationError("findings.primary_disease", "primary disease is required", f.PrimaryDisease)
	}
	if !scoreInRange(f.PrimaryScore) {
		return NewValidationError("findings.primary_score", "score must be within [0,100]", f.PrimaryScore)
	}
	if !scoreInRange(f.Confidence) {
		return NewValidationError("findings.confidence", "confidence must be within [0,100]", f.Confidence)
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		return NewValidationError("findings.severity", "unknown severity", f.Severity)
	}
	for i, sf := range f.Secondary {
		if strings.TrimSpace(sf.Name) == "" {
			return NewValidationError(fmt.Sprintf("findings.secondary[%d].name", i), "name is required", sf.Name)
		}
		if !scoreInRange(sf.Score) {
			return NewValidationError(fmt.Sprintf("findings.secondary[%d].score", i), "score must be within [0,100]", sf.Score)
		}
	}
	return nil
}

// Clone returns a deep copy so the secondary list is never shared.
func (f *Findings) Clone() *Findings {
	if f == nil {
		return nil
	}
	c := *f
	if f.Secondary != nil {
		c.Secondary = make([]SecondaryFinding, len(f.Secondary))
		copy(c.Secondary, f.Secondary)
	}
	return &c
}

func scoreInRange(v float64) bool {
	return v >= MinScore && v <= MaxScore
}

// Study is one imaging encounter. ID and OccurredAt never change after
// creation; OccurredAt is the sole ordering key for timelines.
type Study struct {
	ID          string      `json:"id"`
	PatientID   string      `json:"patient_id"`
	PatientName string      `json:"patient_name"`
	Modality    Modality    `json:"modality"`
	BodyRegion  string      `json:"body_region"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Priority    Priority    `json:"priority"`
	Status      StudyStatus `json:"status"`
	Findings    *Findings   `json:"findings,omitempty"`
}

// Validate checks the invariants the engine depends on. A zero OccurredAt is
// malformed because timeline ordering cannot be upheld without it.
func (s *Study) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return NewValidationError("id", "study id is required", s.ID)
	}
	if strings.TrimSpace(s.PatientID) == "" {
		return NewValidationError("patient_id", "patient id is required", s.PatientID)
	}
	if s.OccurredAt.IsZero() {
		return NewValidationError("occurred_at", "timestamp is required", s.OccurredAt)
	}
	if !s.Modality.IsValid() {
		return NewValidationError("modality", "unknown modality", s.Modality)
	}
	if s.Priority != "" && !s.Priority.IsValid() {
		return NewValidationError("priority", "unknown priority", s.Priority)
	}
	if !s.Status.IsValid() {
		return NewValidationError("status", "unknown status", s.Status)
	}
	if s.Findings != nil {
		if err := s.Findings.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HasFindings reports whether AI analysis output is attached.
func (s *Study) HasFindings() bool {
	return s.Findings != nil
}

// Clone returns a copy that shares no mutable state with s.
func (s Study) Clone() Study {
	s.Findings = s.Findings.Clone()
	return s
}

// LogFields returns structured logging fields. Patient names are omitted.
func (s *Study) LogFields() map[string]any {
	return map[string]any{
		"study_id":     s.ID,
		"patient_id":   s.PatientID,
		"modality":     string(s.Modality),
		"status":       string(s.Status),
		"has_findings": s.HasFindings(),
	}
}

// Snapshot is an immutable point-in-time read of the study collection.
// Version changes on every store mutation; zero means unversioned.
type Snapshot struct {
	Version uint64    `json:"version"`
	TakenAt time.Time `json:"taken_at"`
	Studies []Study   `json:"studies"`
}

// Len returns the number of studies in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Studies)
}
