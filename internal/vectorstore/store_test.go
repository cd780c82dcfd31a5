package vectorstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"course-rag/internal/ai"
	"course-rag/internal/model"
)

func openTestStore(t *testing.T, embedder ai.Embedder) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if embedder == nil {
		embedder = ai.NewHashEmbedder(128)
	}
	store, err := Open(context.Background(), db, embedder, Options{
		MaxResults: 3,
		BatchSize:  2,
		Logger:     log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, db
}

func testCourse(title string, lessons int) model.Course {
	course := model.Course{Title: title, Link: "https://example.com/" + title, Instructor: "Ada"}
	for i := 0; i < lessons; i++ {
		course.Lessons = append(course.Lessons, model.Lesson{
			Number: i,
			Title:  "Lesson title",
			Link:   "https://example.com/lesson",
		})
	}
	return course
}

func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	courses := []struct {
		course model.Course
		chunks []model.Chunk
	}{
		{
			course: model.Course{
				Title: "Building Towards Computer Use with Anthropic",
				Lessons: []model.Lesson{
					{Number: 0, Title: "Introduction", Link: "https://example.com/cu/0"},
					{Number: 1, Title: "Tool Use", Link: "https://example.com/cu/1"},
				},
			},
			chunks: []model.Chunk{
				{CourseTitle: "Building Towards Computer Use with Anthropic", LessonNumber: model.IntPtr(0), Index: 0, Content: "Lesson 0 content: welcome to computer use and agents"},
				{CourseTitle: "Building Towards Computer Use with Anthropic", LessonNumber: model.IntPtr(1), Index: 1, Content: "Lesson 1 content: tool use lets the model call functions with a json schema"},
				{CourseTitle: "Building Towards Computer Use with Anthropic", LessonNumber: model.IntPtr(1), Index: 2, Content: "tool results are returned to the model as messages"},
			},
		},
		{
			course: model.Course{
				Title:   "MCP: Build Rich-Context AI Apps with Anthropic",
				Lessons: []model.Lesson{{Number: 1, Title: "Servers"}},
			},
			chunks: []model.Chunk{
				{CourseTitle: "MCP: Build Rich-Context AI Apps with Anthropic", LessonNumber: model.IntPtr(1), Index: 0, Content: "Lesson 1 content: mcp servers expose tools and resources"},
			},
		},
		{
			course: model.Course{Title: "Introduction to Prompt Engineering"},
			chunks: []model.Chunk{
				{CourseTitle: "Introduction to Prompt Engineering", Index: 0, Content: "prompt engineering is the craft of writing clear instructions"},
			},
		},
	}
	for _, c := range courses {
		added, err := s.AddCourseContent(ctx, c.course, c.chunks)
		if err != nil || !added {
			t.Fatalf("AddCourseContent(%q) = %v, %v", c.course.Title, added, err)
		}
	}
}

func TestAddCourseContentIsIdempotent(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()
	seedCatalog(t, s)

	course := model.Course{Title: "Introduction to Prompt Engineering"}
	chunks := []model.Chunk{{CourseTitle: course.Title, Index: 0, Content: "duplicate"}}
	added, err := s.AddCourseContent(ctx, course, chunks)
	if err != nil || added {
		t.Fatalf("re-ingest = %v, %v; want false, nil", added, err)
	}
	n, err := s.CourseCount(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CourseCount() = %d, %v", n, err)
	}
	chunkCount, err := s.ChunkCount(ctx, course.Title)
	if err != nil || chunkCount != 1 {
		t.Fatalf("ChunkCount() = %d, %v", chunkCount, err)
	}
	titles, _ := s.CourseTitles(ctx)
	if len(titles) != 3 || titles[0] != "Building Towards Computer Use with Anthropic" {
		t.Fatalf("CourseTitles() = %v", titles)
	}
}

func TestAddCourseAndChunksSeparately(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()
	course := testCourse("Go Basics", 2)

	added, err := s.AddCourse(ctx, course)
	if err != nil || !added {
		t.Fatalf("AddCourse() = %v, %v", added, err)
	}
	added, err = s.AddCourse(ctx, course)
	if err != nil || added {
		t.Fatalf("second AddCourse() = %v, %v; want false, nil", added, err)
	}
	chunks := make([]model.Chunk, 5)
	for i := range chunks {
		chunks[i] = model.Chunk{CourseTitle: course.Title, LessonNumber: model.IntPtr(i % 2), Index: i, Content: "goroutines and channels"}
	}
	if err := s.AddChunks(ctx, chunks); err != nil {
		t.Fatalf("AddChunks() error = %v", err)
	}
	if n, _ := s.ChunkCount(ctx, course.Title); n != 5 {
		t.Fatalf("ChunkCount() = %d, want 5", n)
	}
	if title, ok, _ := s.ResolveCourseName(ctx, "go basic"); !ok || title != "Go Basics" {
		t.Fatalf("fuzzy resolve after AddCourse = %q, %v", title, ok)
	}
}

func TestResolveCourseName(t *testing.T) {
	s, _ := openTestStore(t, nil)
	seedCatalog(t, s)

	tests := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{"exact", "Introduction to Prompt Engineering", "Introduction to Prompt Engineering", true},
		{"case insensitive", "introduction to prompt engineering", "Introduction to Prompt Engineering", true},
		{"partial", "computer use", "Building Towards Computer Use with Anthropic", true},
		{"acronym", "MCP", "MCP: Build Rich-Context AI Apps with Anthropic", true},
		{"misspelled", "Prompt Engneering", "Introduction to Prompt Engineering", true},
		{"word prefix", "Intro", "Introduction to Prompt Engineering", true},
		{"trailing prefix", "Prompt Eng", "Introduction to Prompt Engineering", true},
		{"prefix with stop word", "intro to prompt", "Introduction to Prompt Engineering", true},
		{"rich context prefix", "Rich-Cont", "MCP: Build Rich-Context AI Apps with Anthropic", true},
		{"unknown", "Cooking for Beginners", "", false},
		{"blank", "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := s.ResolveCourseName(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("ResolveCourseName() error = %v", err)
			}
			if ok != tt.found || got != tt.want {
				t.Fatalf("ResolveCourseName(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	s, _ := openTestStore(t, nil)
	seedCatalog(t, s)
	ctx := context.Background()

	results, err := s.Search(ctx, SearchQuery{Query: "tool use json schema functions"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected limit of 3 results, got %d", len(results))
	}
	top := results[0]
	if top.CourseTitle != "Building Towards Computer Use with Anthropic" || top.LessonNumber == nil || *top.LessonNumber != 1 || top.ChunkIndex != 1 {
		t.Fatalf("unexpected top result %+v", top)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted by score: %+v", results)
		}
	}
}

func TestSearchFilters(t *testing.T) {
	s, _ := openTestStore(t, nil)
	seedCatalog(t, s)
	ctx := context.Background()

	results, err := s.Search(ctx, SearchQuery{Query: "tools", CourseName: "mcp"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].CourseTitle != "MCP: Build Rich-Context AI Apps with Anthropic" {
		t.Fatalf("course filter results = %+v", results)
	}

	results, err = s.Search(ctx, SearchQuery{Query: "tools", CourseName: "computer use", LessonNumber: model.IntPtr(0)})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || *results[0].LessonNumber != 0 {
		t.Fatalf("lesson filter results = %+v", results)
	}

	results, err = s.Search(ctx, SearchQuery{Query: "tools", CourseName: "Underwater Basket Weaving"})
	if err != nil {
		t.Fatalf("non-matching course filter must not fail: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("non-matching course filter results = %+v", results)
	}

	results, err = s.Search(ctx, SearchQuery{Query: "tools", CourseName: "computer use", LessonNumber: model.IntPtr(7)})
	if err != nil || len(results) != 0 {
		t.Fatalf("missing lesson = %+v, %v", results, err)
	}
}

func TestCourseOutlineAndLessonLink(t *testing.T) {
	s, _ := openTestStore(t, nil)
	seedCatalog(t, s)
	ctx := context.Background()

	course, err := s.CourseOutline(ctx, "computer use")
	if err != nil || course == nil {
		t.Fatalf("CourseOutline() = %v, %v", course, err)
	}
	if len(course.Lessons) != 2 || course.Lessons[1].Title != "Tool Use" {
		t.Fatalf("outline lessons = %+v", course.Lessons)
	}
	if missing, err := s.CourseOutline(ctx, "nothing like this"); err != nil || missing != nil {
		t.Fatalf("missing outline = %v, %v", missing, err)
	}

	link, err := s.LessonLink(ctx, course.Title, 1)
	if err != nil || link != "https://example.com/cu/1" {
		t.Fatalf("LessonLink() = %q, %v", link, err)
	}
	if link, _ := s.LessonLink(ctx, course.Title, 9); link != "" {
		t.Fatalf("unknown lesson link = %q", link)
	}
}

func TestCatalogReloadedOnOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	open := func() *Store {
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			t.Fatal(err)
		}
		s, err := Open(context.Background(), db, ai.NewHashEmbedder(64), Options{Logger: log.New(io.Discard, "", 0)})
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	first := open()
	if _, err := first.AddCourse(context.Background(), model.Course{Title: "Retrieval Augmented Generation"}); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second := open()
	defer second.Close()
	title, ok, err := second.ResolveCourseName(context.Background(), "retrieval augmentd")
	if err != nil || !ok || title != "Retrieval Augmented Generation" {
		t.Fatalf("ResolveCourseName() after reopen = %q, %v, %v", title, ok, err)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

func TestEmbeddingFailureIsStoreUnavailable(t *testing.T) {
	s, _ := openTestStore(t, failingEmbedder{})
	_, err := s.AddCourseContent(context.Background(), model.Course{Title: "X"}, []model.Chunk{{CourseTitle: "X", Content: "text"}})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("AddCourseContent() error = %v, want ErrStoreUnavailable", err)
	}
	if n, _ := s.CourseCount(context.Background()); n != 0 {
		t.Fatalf("failed ingestion left %d catalog entries", n)
	}
}

func TestClosedDatabaseIsStoreUnavailable(t *testing.T) {
	s, db := openTestStore(t, nil)
	seedCatalog(t, s)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	_ = sqlDB.Close()

	if _, err := s.Search(context.Background(), SearchQuery{Query: "tools"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Search() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := s.Search(context.Background(), SearchQuery{Query: "tools", CourseName: "mcp"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("filtered Search() error = %v, want ErrStoreUnavailable", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Ping() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestOpenUnreachableMySQL(t *testing.T) {
	// No expectations are registered, so every statement fails.
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	_, err = Open(context.Background(), db, ai.NewHashEmbedder(8), Options{Logger: log.New(io.Discard, "", 0)})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Open() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestSearchSkipsCorruptEmbedding(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	var logs bytes.Buffer
	s, err := Open(context.Background(), db, ai.NewHashEmbedder(128), Options{
		MaxResults: 10,
		Logger:     log.New(&logs, "", 0),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	seedCatalog(t, s)

	if err := db.Model(&model.ContentRecord{}).
		Where("course_title = ? AND chunk_index = ?", "Introduction to Prompt Engineering", 0).
		Update("embedding", "[0.1, not-json").Error; err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	results, err := s.Search(context.Background(), SearchQuery{Query: "prompt engineering instructions"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4 without the corrupt chunk", len(results))
	}
	for _, r := range results {
		if r.CourseTitle == "Introduction to Prompt Engineering" {
			t.Fatalf("corrupt chunk returned: %+v", r)
		}
	}
	if !strings.Contains(logs.String(), "Introduction to Prompt Engineering chunk 0") {
		t.Fatalf("corrupt chunk not logged, logs: %q", logs.String())
	}
}
