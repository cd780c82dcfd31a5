package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"course-rag/internal/model"
	"course-rag/internal/vectorstore"
)

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestIngestFolderIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	dir := writeDocs(t, map[string]string{
		"course1_script.txt": introToX,
		"course2_script.txt": "Lesson 1: No header\nbody text",
		"course3_script.txt": "Course Title: Second Course\n\nLesson 1: Only\nSome content here.",
		"course4_script.txt": introToX,
		"notes.md":           "ignored",
	})

	report, err := env.ingest.IngestFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestFolder() error = %v", err)
	}
	if len(report.Added) != 2 || report.Added[0].CourseTitle != "Intro to X" || report.Added[1].CourseTitle != "Second Course" {
		t.Fatalf("added = %+v", report.Added)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Source != "course4_script.txt" {
		t.Fatalf("skipped = %+v", report.Skipped)
	}
	if len(report.Failures) != 1 || report.Failures[0].Source != "course2_script.txt" {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if report.TotalChunks() != 3 {
		t.Fatalf("total chunks = %d, want 3", report.TotalChunks())
	}

	n, _ := env.store.CourseCount(context.Background())
	if n != 2 {
		t.Fatalf("CourseCount() = %d", n)
	}
	if got := testutil.ToFloat64(env.metrics.IngestedCourses.WithLabelValues("malformed")); got != 1 {
		t.Fatalf("malformed metric = %v", got)
	}
	if got := testutil.ToFloat64(env.metrics.IngestedChunks); got != 3 {
		t.Fatalf("chunks metric = %v", got)
	}
}

func TestIngestFolderIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	dir := writeDocs(t, map[string]string{"x.txt": introToX})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := env.ingest.IngestFolder(ctx, dir); err != nil {
			t.Fatal(err)
		}
	}
	n, _ := env.store.CourseCount(ctx)
	chunks, _ := env.store.ChunkCount(ctx, "Intro to X")
	if n != 1 || chunks != 2 {
		t.Fatalf("after re-ingest: courses=%d chunks=%d", n, chunks)
	}
}

func TestIngestFolderMissingDir(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.ingest.IngestFolder(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing folder")
	}
}

func TestIngestDocumentErrors(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.ingest.IngestDocument(context.Background(), "blank", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank document error = %v", err)
	}
	_, err := env.ingest.IngestDocument(context.Background(), "bad", "no header at all")
	if !IsMalformed(err) {
		t.Fatalf("malformed error = %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) AddCourseContent(context.Context, model.Course, []model.Chunk) (bool, error) {
	return false, vectorstore.ErrStoreUnavailable
}

func TestIngestDocumentStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := NewIngestService(env.ingest.processor, failingWriter{}, nil, quietLogger)
	_, err := svc.IngestDocument(context.Background(), "x.txt", introToX)
	if !errors.Is(err, vectorstore.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
}
