package domain

import (
	"time"
)

// ComparisonRecord is one study projected onto a selected disease.
// It is produced fresh per query and never stored.
type ComparisonRecord struct {
	StudyID    string    `json:"study_id"`
	Date       time.Time `json:"date"`
	Modality   Modality  `json:"modality"`
	BodyRegion string    `json:"body_region"`
	Score      float64   `json:"score"`
	Disease    string    `json:"disease"`
}

// ComparisonPoint annotates a record with its severity bucket and the change
// from the previous record. HasDelta is false for the baseline.
type ComparisonPoint struct {
	ComparisonRecord
	Severity Severity `json:"severity"`
	Delta    float64  `json:"delta"`
	HasDelta bool     `json:"has_delta"`
}

// MonthlyBucket aggregates the studies of one calendar month.
// Analyzed stands in for "reviewer agreed" and NotAnalyzed for "disagreed":
// true agreement data is not available, analysis completion is the proxy.
// AgreePercent+DisagreePercent is exactly 100 whenever Total > 0.
type MonthlyBucket struct {
	MonthLabel       string `json:"month_label"`
	MonthKey         string `json:"month_key"`
	Year             int    `json:"year"`
	Month            int    `json:"month"`
	Total            int    `json:"total"`
	Analyzed         int    `json:"analyzed"`
	NotAnalyzed      int    `json:"not_analyzed"`
	AgreePercent     int    `json:"agree_percent"`
	DisagreePercent  int    `json:"disagree_percent"`
	SampleAnnotation string `json:"sample_annotation"`
}

// DiseaseCount is one slice of the primary-disease distribution.
type DiseaseCount struct {
	Disease string `json:"disease"`
	Count   int    `json:"count"`
}

// PatientSummary is one entry of the patient directory.
type PatientSummary struct {
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	StudyCount    int       `json:"study_count"`
	LatestStudyAt time.Time `json:"latest_study_at"`
}

// ExamType identifies the modality and body region of a study.
type ExamType struct {
	Modality   Modality `json:"modality"`
	BodyRegion string   `json:"body_region"`
}

// ComparisonView bundles everything a progression review screen needs for
// one patient and disease. Disease is empty when the patient has no scores.
type ComparisonView struct {
	Patient           PatientSummary    `json:"patient"`
	ExamType          *ExamType         `json:"exam_type,omitempty"`
	ExamScoped        bool              `json:"exam_scoped"`
	AvailableDiseases []string          `json:"available_diseases"`
	Disease           string            `json:"disease"`
	RequestedDisease  string            `json:"requested_disease,omitempty"`
	Points            []ComparisonPoint `json:"points"`
	LatestStudyID     string            `json:"latest_study_id,omitempty"`
	PreviousStudyID   string            `json:"previous_study_id,omitempty"`
	Trend             Trend             `json:"trend"`
	Narrative         string            `json:"narrative"`
	SnapshotVersion   uint64            `json:"snapshot_version"`
}

// Summary holds the headline KPIs for a date range.
type Summary struct {
	Range           DateRange `json:"range"`
	TotalStudies    int       `json:"total_studies"`
	Analyzed        int       `json:"analyzed"`
	AnalysisRate    int       `json:"analysis_rate"`
	UrgentStudies   int       `json:"urgent_studies"`
	TopDisease      string    `json:"top_disease"`
	GeneratedAt     time.Time `json:"generated_at"`
	SnapshotVersion uint64    `json:"snapshot_version"`
}
