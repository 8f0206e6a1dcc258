package analytics

import (
	"sort"
	"strings"

	"github.com/study-analytics-engine/internal/domain"
)

// Patients builds the patient directory from a snapshot. The name shown is the
// first one encountered for each patient id. Sorted by patient id.
func Patients(studies []domain.Study) []domain.PatientSummary {
	byID := make(map[string]*domain.PatientSummary)
	for i := range studies {
		s := &studies[i]
		p, ok := byID[s.PatientID]
		if !ok {
			p = &domain.PatientSummary{PatientID: s.PatientID, PatientName: s.PatientName}
			byID[s.PatientID] = p
		}
		p.StudyCount++
		if s.OccurredAt.After(p.LatestStudyAt) {
			p.LatestStudyAt = s.OccurredAt
		}
	}

	out := make([]domain.PatientSummary, 0, len(byID))
	for _, p := range byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out
}

// SearchPatients filters the directory by a case-insensitive substring of the
// patient name or id. A blank term matches everyone.
func SearchPatients(studies []domain.Study, term string) []domain.PatientSummary {
	all := Patients(studies)
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return all
	}
	out := make([]domain.PatientSummary, 0)
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.PatientName), needle) ||
			strings.Contains(strings.ToLower(p.PatientID), needle) {
			out = append(out, p)
		}
	}
	return out
}

// LatestExamType is the modality and body region of the last study in an
// ordered timeline.
func LatestExamType(timeline []domain.Study) (domain.ExamType, bool) {
	if len(timeline) == 0 {
		return domain.ExamType{}, false
	}
	last := timeline[len(timeline)-1]
	return domain.ExamType{Modality: last.Modality, BodyRegion: last.BodyRegion}, true
}

// DefaultDisease picks the disease a comparison screen opens on: the latest
// study's primary disease when it is available, else the first available one.
// Only the latest study is consulted; a latest study without findings goes
// straight to the fallback.
func DefaultDisease(timeline []domain.Study, available []string) (string, bool) {
	if n := len(timeline); n > 0 {
		if f := timeline[n-1].Findings; f != nil && IsAvailable(available, f.PrimaryDisease) {
			return canonical(available, f.PrimaryDisease), true
		}
	}
	if len(available) > 0 {
		return available[0], true
	}
	return "", false
}

// SameExamType keeps the studies matching exam by modality and body region.
// Body regions compare case-insensitively.
func SameExamType(timeline []domain.Study, exam domain.ExamType) []domain.Study {
	out := make([]domain.Study, 0, len(timeline))
	for i := range timeline {
		if timeline[i].Modality == exam.Modality &&
			strings.EqualFold(strings.TrimSpace(timeline[i].BodyRegion), strings.TrimSpace(exam.BodyRegion)) {
			out = append(out, timeline[i])
		}
	}
	return out
}

// canonical returns the spelling used in the available list.
func canonical(available []string, disease string) string {
	key := DiseaseKey(disease)
	for _, d := range available {
		if DiseaseKey(d) == key {
			return d
		}
	}
	return disease
}
