package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/study-analytics-engine/internal/domain"
	"github.com/study-analytics-engine/internal/store"
)

func newTestLoader() *Loader {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return NewLoader(time.UTC, logger)
}

func TestLoader_LoadFile(t *testing.T) {
	studies, err := newTestLoader().LoadFile("testdata/studies.yaml")
	require.NoError(t, err)
	require.Len(t, studies, 4)

	first := studies[0]
	assert.Equal(t, "STU-001", first.ID)
	assert.Equal(t, domain.ModalityXRay, first.Modality)
	assert.Equal(t, time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC), first.OccurredAt)
	require.NotNil(t, first.Findings)
	assert.Equal(t, 88.0, first.Findings.PrimaryScore)
	assert.Equal(t, domain.SeverityHigh, first.Findings.Severity)
	require.Len(t, first.Findings.Secondary, 2)

	assert.Equal(t, domain.PriorityRoutine, studies[1].Priority)
	assert.Equal(t, domain.StatusAnalyzed, studies[2].Status)
	assert.Equal(t, domain.PriorityUrgent, studies[2].Priority)

	pendingStudy := studies[3]
	assert.Nil(t, pendingStudy.Findings)
	assert.Equal(t, time.Date(2024, time.December, 6, 0, 0, 0, 0, time.UTC), pendingStudy.OccurredAt)
}

func TestLoader_Decode_Timestamps(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	loader := NewLoader(tokyo, nil)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-03-01T08:00:00Z", time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)},
		{"2024-03-01T08:00:00", time.Date(2024, time.March, 1, 8, 0, 0, 0, tokyo)},
		{"2024-03-01 08:00:00", time.Date(2024, time.March, 1, 8, 0, 0, 0, tokyo)},
		{"2024-03-01", time.Date(2024, time.March, 1, 0, 0, 0, 0, tokyo)},
		{"20240301080000", time.Date(2024, time.March, 1, 8, 0, 0, 0, tokyo)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			doc := "studies:\n  - id: S\n    patient_id: P\n    modality: CT\n    occurred_at: \"" + tt.raw + "\"\n"
			studies, err := loader.Decode(strings.NewReader(doc))
			require.NoError(t, err)
			require.Len(t, studies, 1)
			assert.True(t, tt.want.Equal(studies[0].OccurredAt), "got %v", studies[0].OccurredAt)
		})
	}
}

func TestLoader_Decode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "missing timestamp",
			doc:   "studies:\n  - id: S\n    patient_id: P\n    modality: CT\n",
			field: "occurred_at",
		},
		{
			name:  "bad timestamp",
			doc:   "studies:\n  - id: S\n    patient_id: P\n    modality: CT\n    occurred_at: yesterday\n",
			field: "occurred_at",
		},
		{
			name:  "unknown modality",
			doc:   "studies:\n  - id: S\n    patient_id: P\n    modality: PET\n    occurred_at: \"2024-01-01\"\n",
			field: "modality",
		},
		{
			name: "score out of range",
			doc: "studies:\n  - id: S\n    patient_id: P\n    modality: CT\n    occurred_at: \"2024-01-01\"\n" +
				"    findings:\n      primary_disease: Pneumonia\n      score: 120\n",
			field: "findings.primary_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader().Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedStudy))

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	t.Run("unknown field", func(t *testing.T) {
		_, err := newTestLoader().Decode(strings.NewReader("studies:\n  - id: S\n    colour: red\n"))
		assert.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		studies, err := newTestLoader().Decode(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, studies)
	})
}

func TestLoader_EncodeDecode(t *testing.T) {
	loader := newTestLoader()
	studies, err := loader.LoadFile("testdata/studies.yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, loader.Encode(&buf, studies))
	assert.Contains(t, buf.String(), "primary_disease: Pneumonia")

	again, err := loader.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, again, len(studies))
	for i := range studies {
		assert.Equal(t, studies[i].ID, again[i].ID)
		assert.True(t, studies[i].OccurredAt.Equal(again[i].OccurredAt))
		assert.Equal(t, studies[i].Findings, again[i].Findings)
	}
}

func TestImport(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	s := store.NewMemoryStore(logger)

	studies, err := newTestLoader().LoadFile("testdata/studies.yaml")
	require.NoError(t, err)

	added, updated, err := Import(s, studies)
	require.NoError(t, err)
	assert.Equal(t, 4, added)
	assert.Equal(t, 0, updated)

	added, updated, err = Import(s, studies[:2])
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 4, s.Len())

	moved := studies[0]
	moved.OccurredAt = moved.OccurredAt.Add(time.Hour)
	_, _, err = Import(s, []domain.Study{moved})
	assert.Error(t, err)
}

func TestImport_RecordsWithoutID(t *testing.T) {
	doc := "studies:\n" +
		"  - patient_id: P-9\n    modality: CT\n    body_region: Chest\n    occurred_at: \"2024-05-01T10:00:00Z\"\n" +
		"  - patient_id: P-9\n    modality: CT\n    body_region: Chest\n    occurred_at: \"2024-06-01T10:00:00Z\"\n"

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	s := store.NewMemoryStore(logger)
	loader := newTestLoader()

	for i := 0; i < 3; i++ {
		studies, err := loader.Decode(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, studies, 2)
		assert.True(t, strings.HasPrefix(studies[0].ID, "STU-"))
		assert.NotEqual(t, studies[0].ID, studies[1].ID)

		_, _, err = Import(s, studies)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len(), "reload %d", i)
	}

	first, err := loader.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	again, err := loader.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, again[0].ID)
	assert.Equal(t, DerivedID(&first[0]), first[0].ID)
}

func TestImport_RejectedReloadKeepsStore(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	s := store.NewMemoryStore(logger)

	studies, err := newTestLoader().LoadFile("testdata/studies.yaml")
	require.NoError(t, err)
	_, _, err = Import(s, studies)
	require.NoError(t, err)
	version := s.Version()

	edited := make([]domain.Study, len(studies))
	copy(edited, studies)
	edited[0].Status = domain.StatusInReview
	edited[3].OccurredAt = edited[3].OccurredAt.Add(time.Hour)

	_, _, err = Import(s, edited)
	require.Error(t, err)
	assert.Equal(t, version, s.Version())

	got, err := s.Get(studies[0].ID)
	require.NoError(t, err)
	assert.Equal(t, studies[0].Status, got.Status)
}
