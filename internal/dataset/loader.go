// Package dataset reads and writes study fixtures in YAML.
package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/study-analytics-engine/internal/domain"
)

// Accepted timestamp layouts, tried in order. Values without a zone are read
// in the loader's location.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102150405",
}

// idNamespace seeds the ids derived for records that carry none.
var idNamespace = uuid.MustParse("6f1d3c9e-2b47-4e8a-9a51-3c0f7d2e8b14")

// Document is the top-level fixture shape.
type Document struct {
	Studies []Record `yaml:"studies"`
}

// Record is the on-disk form of a study.
type Record struct {
	ID          string          `yaml:"id"`
	PatientID   string          `yaml:"patient_id"`
	PatientName string          `yaml:"patient_name,omitempty"`
	Modality    string          `yaml:"modality"`
	BodyRegion  string          `yaml:"body_region,omitempty"`
	OccurredAt  string          `yaml:"occurred_at"`
	Priority    string          `yaml:"priority,omitempty"`
	Status      string          `yaml:"status,omitempty"`
	Findings    *FindingsRecord `yaml:"findings,omitempty"`
}

// FindingsRecord is the on-disk form of AI findings.
type FindingsRecord struct {
	PrimaryDisease string            `yaml:"primary_disease"`
	Score          float64           `yaml:"score"`
	Severity       string            `yaml:"severity,omitempty"`
	Confidence     float64           `yaml:"confidence,omitempty"`
	Secondary      []SecondaryRecord `yaml:"secondary,omitempty"`
}

// SecondaryRecord is one secondary finding.
type SecondaryRecord struct {
	Name  string  `yaml:"name"`
	Score float64 `yaml:"score"`
}

// Loader converts fixtures to studies.
type Loader struct {
	location *time.Location
	logger   *logrus.Logger
}

// NewLoader creates a loader that reads zone-less timestamps in loc.
func NewLoader(loc *time.Location, logger *logrus.Logger) *Loader {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{location: loc, logger: logger}
}

// Decode parses a YAML document into validated studies. Any malformed record
// fails the whole document.
func (l *Loader) Decode(r io.Reader) ([]domain.Study, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return []domain.Study{}, nil
		}
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	studies := make([]domain.Study, 0, len(doc.Studies))
	for i, rec := range doc.Studies {
		study, err := l.toStudy(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %w", domain.ErrMalformedStudy, i, rec.ID, err)
		}
		studies = append(studies, study)
	}
	return studies, nil
}

// LoadFile decodes the fixture at path.
func (l *Loader) LoadFile(path string) ([]domain.Study, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	studies, err := l.Decode(f)
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"path":    path,
		"studies": len(studies),
	}).Info("Dataset loaded")
	return studies, nil
}

// Encode writes studies as a fixture document.
func (l *Loader) Encode(w io.Writer, studies []domain.Study) error {
	doc := Document{Studies: make([]Record, len(studies))}
	for i := range studies {
		doc.Studies[i] = l.fromStudy(&studies[i])
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// BatchUpserter is the store surface Import needs.
type BatchUpserter interface {
	UpsertBatch(studies []domain.Study) (added, updated int, err error)
}

// Import writes studies into the store as a single change and reports how many
// were added and how many replaced. A rejected study leaves the store as it was.
func Import(store BatchUpserter, studies []domain.Study) (added, updated int, err error) {
	added, updated, err = store.UpsertBatch(studies)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to import dataset: %w", err)
	}
	return added, updated, nil
}

// DerivedID is the id given to a record without one. It depends only on the
// exam identity, so reading the same file again yields the same id.
func DerivedID(s *domain.Study) string {
	key := strings.Join([]string{
		strings.TrimSpace(s.PatientID),
		s.OccurredAt.UTC().Format(time.RFC3339Nano),
		string(s.Modality),
		strings.ToLower(strings.TrimSpace(s.BodyRegion)),
	}, "|")
	return "STU-" + uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func (l *Loader) toStudy(rec Record) (domain.Study, error) {
	modality, err := domain.ParseModality(rec.Modality)
	if err != nil {
		return domain.Study{}, domain.NewValidationError("modality", err.Error(), rec.Modality)
	}
	priority, err := domain.ParsePriority(rec.Priority)
	if err != nil {
		return domain.Study{}, domain.NewValidationError("priority", err.Error(), rec.Priority)
	}
	status, err := domain.ParseStudyStatus(rec.Status)
	if err != nil {
		return domain.Study{}, domain.NewValidationError("status", err.Error(), rec.Status)
	}
	at, err := l.parseTime(rec.OccurredAt)
	if err != nil {
		return domain.Study{}, domain.NewValidationError("occurred_at", err.Error(), rec.OccurredAt)
	}

	study := domain.Study{
		ID:          strings.TrimSpace(rec.ID),
		PatientID:   strings.TrimSpace(rec.PatientID),
		PatientName: rec.PatientName,
		Modality:    modality,
		BodyRegion:  rec.BodyRegion,
		OccurredAt:  at,
		Priority:    priority,
		Status:      status,
	}

	if rec.Findings != nil {
		f := &domain.Findings{
			PrimaryDisease: rec.Findings.PrimaryDisease,
			PrimaryScore:   rec.Findings.Score,
			Confidence:     rec.Findings.Confidence,
		}
		if rec.Findings.Severity != "" {
			sev, err := domain.ParseSeverity(rec.Findings.Severity)
			if err != nil {
				return domain.Study{}, domain.NewValidationError("findings.severity", err.Error(), rec.Findings.Severity)
			}
			f.Severity = sev
		}
		for _, sr := range rec.Findings.Secondary {
			f.Secondary = append(f.Secondary, domain.SecondaryFinding{Name: sr.Name, Score: sr.Score})
		}
		study.Findings = f
	}

	if study.ID == "" {
		study.ID = DerivedID(&study)
	}
	return study, study.Validate()
}

func (l *Loader) fromStudy(s *domain.Study) Record {
	rec := Record{
		ID:          s.ID,
		PatientID:   s.PatientID,
		PatientName: s.PatientName,
		Modality:    string(s.Modality),
		BodyRegion:  s.BodyRegion,
		OccurredAt:  s.OccurredAt.Format(time.RFC3339),
		Priority:    string(s.Priority),
		Status:      string(s.Status),
	}
	if f := s.Findings; f != nil {
		rec.Findings = &FindingsRecord{
			PrimaryDisease: f.PrimaryDisease,
			Score:          f.PrimaryScore,
			Severity:       string(f.Severity),
			Confidence:     f.Confidence,
		}
		for _, sf := range f.Secondary {
			rec.Findings.Secondary = append(rec.Findings.Secondary, SecondaryRecord{Name: sf.Name, Score: sf.Score})
		}
	}
	return rec
}

func (l *Loader) parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, l.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}
