package analytics

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/study-analytics-engine/internal/domain"
)

// MockSnapshotSource is a mock implementation of the SnapshotSource interface
type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) Snapshot() domain.Snapshot {
	args := m.Called()
	return args.Get(0).(domain.Snapshot)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 9, 0, 0, 0, time.UTC)
}

func analyzed(id, patient string, at time.Time, disease string, score float64, secondary ...domain.SecondaryFinding) domain.Study {
	return domain.Study{
		ID:          id,
		PatientID:   patient,
		PatientName: "Patient " + patient,
		Modality:    domain.ModalityXRay,
		BodyRegion:  "Chest",
		OccurredAt:  at,
		Priority:    domain.PriorityRoutine,
		Status:      domain.StatusAnalyzed,
		Findings: &domain.Findings{
			PrimaryDisease: disease,
			PrimaryScore:   score,
			Severity:       DefaultSeverityScale.Bucket(score),
			Confidence:     90,
			Secondary:      secondary,
		},
	}
}

func pending(id, patient string, at time.Time) domain.Study {
	return domain.Study{
		ID:          id,
		PatientID:   patient,
		PatientName: "Patient " + patient,
		Modality:    domain.ModalityCT,
		BodyRegion:  "Chest",
		OccurredAt:  at,
		Priority:    domain.PriorityUrgent,
		Status:      domain.StatusNew,
	}
}

// pneumoniaFixture holds one patient recovering from pneumonia, stored out of
// chronological order, plus a second patient with a single pending study.
func pneumoniaFixture() []domain.Study {
	return []domain.Study{
		analyzed("STU-003", "P-001", day(2024, time.March, 15), "Pneumonia", 45,
			domain.SecondaryFinding{Name: "Pleural Effusion", Score: 20}),
		analyzed("STU-001", "P-001", day(2024, time.January, 10), "Pneumonia", 88,
			domain.SecondaryFinding{Name: "Atelectasis", Score: 0},
			domain.SecondaryFinding{Name: "Pleural Effusion", Score: 30}),
		analyzed("STU-002", "P-001", day(2024, time.February, 12), "pneumonia", 72),
		pending("STU-004", "P-002", day(2024, time.February, 20)),
	}
}

// agreementFixture has two studies in March (one analyzed) and three in April
// (two analyzed).
func agreementFixture() []domain.Study {
	return []domain.Study{
		analyzed("STU-101", "P-010", day(2024, time.March, 3), "Pneumonia", 80),
		pending("STU-102", "P-011", day(2024, time.March, 20)),
		analyzed("STU-103", "P-010", day(2024, time.April, 2), "Cardiomegaly", 60),
		analyzed("STU-104", "P-012", day(2024, time.April, 9), "Pneumonia", 75),
		pending("STU-105", "P-013", day(2024, time.April, 28)),
	}
}
