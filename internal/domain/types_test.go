package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseStudyStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected StudyStatus
	}{
		{"", StatusNew},
		{"New", StatusNew},
		{"analyzing", StatusAnalyzing},
		{"AI Analyzed", StatusAnalyzed},
		{"Analyzed", StatusAnalyzed},
		{"In Review", StatusInReview},
		{"finalized", StatusFinalized},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStudyStatus(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}

	if _, err := ParseStudyStatus("Archived"); err == nil {
		t.Errorf("Expected error for unknown status")
	}
}

func TestParseModality(t *testing.T) {
	tests := []struct {
		input    string
		expected Modality
	}{
		{"X-ray", ModalityXRay},
		{"xray", ModalityXRay},
		{"CT", ModalityCT},
		{"mr", ModalityMRI},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseModality(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}

	if _, err := ParseModality("PET"); err == nil {
		t.Errorf("Expected error for unsupported modality")
	}
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		input    string
		expected DateRange
	}{
		{"30d", RangeLast30Days},
		{"last30d", RangeLast30Days},
		{"6m", RangeLast6Months},
		{"Last12m", RangeLast12Months},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDateRange(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}

	_, err := ParseDateRange("3w")
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestTrendHasData(t *testing.T) {
	if TrendNotApplicable.HasData() {
		t.Errorf("N/A trend must report no data")
	}
	for _, tr := range []Trend{TrendImproving, TrendWorsening, TrendStable} {
		if !tr.HasData() {
			t.Errorf("Expected %s to carry data", tr)
		}
	}
}

func validStudy() Study {
	return Study{
		ID:         "STU-001",
		PatientID:  "P-1",
		Modality:   ModalityXRay,
		BodyRegion: "Chest",
		OccurredAt: time.Date(2024, 12, 6, 9, 15, 0, 0, time.UTC),
		Priority:   PriorityUrgent,
		Status:     StatusAnalyzed,
		Findings: &Findings{
			PrimaryDisease: "Pneumonia",
			PrimaryScore:   92,
			Severity:       SeverityHigh,
			Confidence:     88,
			Secondary:      []SecondaryFinding{{Name: "Atelectasis", Score: 18}},
		},
	}
}

func TestStudyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Study)
		field  string
	}{
		{"valid", func(s *Study) {}, ""},
		{"missing id", func(s *Study) { s.ID = "" }, "id"},
		{"missing patient", func(s *Study) { s.PatientID = " " }, "patient_id"},
		{"zero timestamp", func(s *Study) { s.OccurredAt = time.Time{} }, "occurred_at"},
		{"bad modality", func(s *Study) { s.Modality = "PET" }, "modality"},
		{"bad status", func(s *Study) { s.Status = "Archived" }, "status"},
		{"primary score out of range", func(s *Study) { s.Findings.PrimaryScore = 101 }, "findings.primary_score"},
		{"secondary score negative", func(s *Study) { s.Findings.Secondary[0].Score = -1 }, "findings.secondary[0].score"},
		{"no findings is fine", func(s *Study) { s.Findings = nil }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStudy()
			tt.mutate(&s)
			err := s.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestStudyCloneIsDeep(t *testing.T) {
	original := validStudy()
	clone := original.Clone()

	clone.Findings.Secondary[0].Score = 50
	clone.Findings.PrimaryScore = 10

	if original.Findings.Secondary[0].Score != 18 {
		t.Errorf("Clone shares secondary findings with original")
	}
	if original.Findings.PrimaryScore != 92 {
		t.Errorf("Clone shares findings with original")
	}
}
