package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"course-rag/internal/ai"
	"course-rag/internal/model"
	"course-rag/internal/repository"
)

const (
	DefaultMaxResults         = 5
	DefaultEmbeddingBatchSize = 10 // many OpenAI-compatible providers cap batch input
)

// ErrStoreUnavailable wraps every failure of the persistence layer or the
// embedding provider behind it.
var ErrStoreUnavailable = errors.New("vector store unavailable")

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

type Options struct {
	MaxResults int
	BatchSize  int
	Logger     *log.Logger
}

// Store holds the course_catalog and course_content collections.
type Store struct {
	db         *gorm.DB
	courses    *repository.CourseRepository
	contents   *repository.ContentRepository
	embedder   ai.Embedder
	catalog    *catalogIndex
	maxResults int
	batchSize  int
	logger     *log.Logger
}

// Open migrates both collections and loads the catalog title index.
func Open(ctx context.Context, db *gorm.DB, embedder ai.Embedder, opts Options) (*Store, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultEmbeddingBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	}
	if err := db.WithContext(ctx).AutoMigrate(&model.CourseRecord{}, &model.ContentRecord{}); err != nil {
		return nil, unavailable(fmt.Errorf("auto migrate failed: %w", err))
	}

	catalog, err := newCatalogIndex()
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:         db,
		courses:    repository.NewCourseRepository(db),
		contents:   repository.NewContentRepository(db),
		embedder:   embedder,
		catalog:    catalog,
		maxResults: opts.MaxResults,
		batchSize:  opts.BatchSize,
		logger:     opts.Logger,
	}

	titles, err := s.courses.ListTitles(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	for _, t := range titles {
		if err := catalog.add(t); err != nil {
			return nil, err
		}
	}
	s.logger.Printf("catalog loaded: %d courses", len(titles))
	return s, nil
}

func (s *Store) MaxResults() int { return s.maxResults }

// Ping checks that the SQL backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// AddCourse inserts the catalog entry. It reports false, without error, when
// a course with the same title already exists.
func (s *Store) AddCourse(ctx context.Context, course model.Course) (bool, error) {
	added, err := s.addCourse(ctx, s.courses, course)
	if err != nil || !added {
		return added, err
	}
	if err := s.catalog.add(course.Title); err != nil {
		s.logger.Printf("index course title %q failed: %v", course.Title, err)
	}
	return true, nil
}

func (s *Store) addCourse(ctx context.Context, courses *repository.CourseRepository, course model.Course) (bool, error) {
	if strings.TrimSpace(course.Title) == "" {
		return false, errors.New("course title is empty")
	}
	existing, err := courses.GetByTitle(ctx, course.Title)
	if err != nil {
		return false, unavailable(err)
	}
	if existing != nil {
		return false, nil
	}
	rec, err := model.NewCourseRecord(course)
	if err != nil {
		return false, fmt.Errorf("encode lessons failed: %w", err)
	}
	if err := courses.Create(ctx, rec); err != nil {
		return false, unavailable(err)
	}
	return true, nil
}

// AddChunks embeds and bulk inserts chunks. Callers deduplicate at the
// course level.
func (s *Store) AddChunks(ctx context.Context, chunks []model.Chunk) error {
	records, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	if err := s.contents.CreateBatch(ctx, records); err != nil {
		return unavailable(err)
	}
	return nil
}

// AddCourseContent stores a course and its chunks in one transaction so a
// failed chunk insert never leaves a catalog entry without content. The
// chunks are skipped when the course already exists.
func (s *Store) AddCourseContent(ctx context.Context, course model.Course, chunks []model.Chunk) (bool, error) {
	existing, err := s.courses.GetByTitle(ctx, course.Title)
	if err != nil {
		return false, unavailable(err)
	}
	if existing != nil {
		return false, nil
	}
	records, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return false, err
	}

	added := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.addCourse(ctx, s.courses.WithTx(tx), course)
		if err != nil || !ok {
			return err
		}
		if err := s.contents.WithTx(tx).CreateBatch(ctx, records); err != nil {
			return unavailable(err)
		}
		added = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return false, err
		}
		return false, unavailable(err)
	}
	if added {
		if err := s.catalog.add(course.Title); err != nil {
			s.logger.Printf("index course title %q failed: %v", course.Title, err)
		}
	}
	return added, nil
}

func (s *Store) embedChunks(ctx context.Context, chunks []model.Chunk) ([]model.ContentRecord, error) {
	records := make([]model.ContentRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, unavailable(fmt.Errorf("embed chunks failed: %w", err))
		}
		if len(vecs) != len(batch) {
			return nil, unavailable(fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch)))
		}
		for i, c := range batch {
			rec := model.ContentRecord{
				CourseTitle:  c.CourseTitle,
				LessonNumber: c.LessonNumber,
				ChunkIndex:   c.Index,
				Content:      c.Content,
			}
			rec.SetEmbedding(vecs[i])
			records = append(records, rec)
		}
	}
	return records, nil
}

// ResolveCourseName maps a possibly partial or misspelled course name to a
// stored title: exact match first, then case-insensitive match, then the best
// fuzzy match from the catalog index.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}
	rec, err := s.courses.GetByTitle(ctx, name)
	if err != nil {
		return "", false, unavailable(err)
	}
	if rec != nil {
		return rec.Title, true, nil
	}
	rec, err = s.courses.GetByTitleFold(ctx, name)
	if err != nil {
		return "", false, unavailable(err)
	}
	if rec != nil {
		return rec.Title, true, nil
	}
	title, ok, err := s.catalog.best(name)
	if err != nil {
		return "", false, err
	}
	return title, ok, nil
}

// GetCourse returns the catalog entry for an exact title.
func (s *Store) GetCourse(ctx context.Context, title string) (*model.Course, error) {
	rec, err := s.courses.GetByTitle(ctx, title)
	if err != nil {
		return nil, unavailable(err)
	}
	if rec == nil {
		return nil, nil
	}
	course := rec.Course()
	return &course, nil
}

// CourseOutline resolves name and returns the matching course.
func (s *Store) CourseOutline(ctx context.Context, name string) (*model.Course, error) {
	title, ok, err := s.ResolveCourseName(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return s.GetCourse(ctx, title)
}

// LessonLink returns the stored link of a lesson, or "" when unknown.
func (s *Store) LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error) {
	course, err := s.GetCourse(ctx, courseTitle)
	if err != nil || course == nil {
		return "", err
	}
	l, ok := course.Lesson(lesson)
	if !ok {
		return "", nil
	}
	return l.Link, nil
}

func (s *Store) CourseCount(ctx context.Context) (int, error) {
	n, err := s.courses.Count(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	titles, err := s.courses.ListTitles(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return titles, nil
}

// ChunkCount returns the number of stored chunks of one course.
func (s *Store) ChunkCount(ctx context.Context, courseTitle string) (int, error) {
	n, err := s.contents.CountByCourse(ctx, courseTitle)
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

func (s *Store) Close() error {
	return s.catalog.close()
}
