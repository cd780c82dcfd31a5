package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"course-rag/internal/document"
	"course-rag/internal/metrics"
	"course-rag/internal/model"
)

type CourseWriter interface {
	AddCourseContent(ctx context.Context, course model.Course, chunks []model.Chunk) (bool, error)
}

// IngestService turns raw course documents into catalog and content entries.
// Documents are processed one at a time.
type IngestService struct {
	processor *document.Processor
	store     CourseWriter
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewIngestService(processor *document.Processor, store CourseWriter, m *metrics.Metrics, logger *log.Logger) *IngestService {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &IngestService{processor: processor, store: store, metrics: m, logger: logger}
}

type IngestResult struct {
	Source      string `json:"source"`
	CourseTitle string `json:"course_title"`
	Chunks      int    `json:"chunks"`
	// Skipped is set when a course with the same title already existed.
	Skipped bool `json:"skipped"`
}

type IngestFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// IngestReport aggregates a folder ingestion; one failing document never
// stops the others.
type IngestReport struct {
	Added    []IngestResult  `json:"added"`
	Skipped  []IngestResult  `json:"skipped"`
	Failures []IngestFailure `json:"failures"`
}

func (r *IngestReport) TotalChunks() int {
	n := 0
	for _, a := range r.Added {
		n += a.Chunks
	}
	return n
}

// IngestDocument parses and stores one document. source names the document
// in logs and reports.
func (s *IngestService) IngestDocument(ctx context.Context, source, text string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		s.countCourse("failed")
		return nil, fmt.Errorf("%w: document %s is empty", ErrInvalidInput, source)
	}
	course, chunks, err := s.processor.Process(text)
	if err != nil {
		s.countCourse("malformed")
		return nil, fmt.Errorf("process %s failed: %w", source, err)
	}

	added, err := s.store.AddCourseContent(ctx, *course, chunks)
	if err != nil {
		s.countCourse("failed")
		return nil, fmt.Errorf("store %s failed: %w", source, err)
	}
	result := &IngestResult{Source: source, CourseTitle: course.Title}
	if !added {
		result.Skipped = true
		s.countCourse("skipped")
		return result, nil
	}
	result.Chunks = len(chunks)
	s.countCourse("added")
	if s.metrics != nil {
		s.metrics.IngestedChunks.Add(float64(len(chunks)))
	}
	return result, nil
}

func (s *IngestService) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	src, err := document.ReadFile(path)
	if err != nil {
		s.countCourse("failed")
		return nil, err
	}
	return s.IngestDocument(ctx, filepath.Base(path), src.Content)
}

// IngestFolder ingests every supported file of dir in name order. Only an
// unreadable folder or a cancelled context returns an error.
func (s *IngestService) IngestFolder(ctx context.Context, dir string) (*IngestReport, error) {
	paths, err := document.ListFolder(dir)
	if err != nil {
		return nil, err
	}
	report := &IngestReport{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.IngestFile(ctx, p)
		if err != nil {
			s.logger.Printf("skip %s: %v", filepath.Base(p), err)
			report.Failures = append(report.Failures, IngestFailure{Source: filepath.Base(p), Error: err.Error()})
			continue
		}
		if res.Skipped {
			report.Skipped = append(report.Skipped, *res)
			continue
		}
		report.Added = append(report.Added, *res)
	}
	s.logger.Printf("ingested %s: %d added (%d chunks), %d already present, %d failed",
		dir, len(report.Added), report.TotalChunks(), len(report.Skipped), len(report.Failures))
	return report, nil
}

func (s *IngestService) countCourse(result string) {
	if s.metrics != nil {
		s.metrics.IngestedCourses.WithLabelValues(result).Inc()
	}
}

// IsMalformed reports whether err came from an unparseable document.
func IsMalformed(err error) bool {
	return errors.Is(err, document.ErrMalformedDocument)
}
