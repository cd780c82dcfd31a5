package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"course-rag/internal/ai"
)

type SearchQuery struct {
	Query string
	// CourseName is resolved against the catalog before filtering.
	CourseName   string
	LessonNumber *int
	// Limit defaults to the store's MaxResults.
	Limit int
}

type SearchResult struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Score        float64
}

// Search returns the chunks nearest to q.Query, best first. A course name
// that resolves to no stored course yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	courseTitle := ""
	if strings.TrimSpace(q.CourseName) != "" {
		title, ok, err := s.ResolveCourseName(ctx, q.CourseName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []SearchResult{}, nil
		}
		courseTitle = title
	}

	records, err := s.contents.List(ctx, courseTitle, q.LessonNumber)
	if err != nil {
		return nil, unavailable(err)
	}
	if len(records) == 0 {
		return []SearchResult{}, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{q.Query})
	if err != nil {
		return nil, unavailable(fmt.Errorf("embed query failed: %w", err))
	}
	if len(vecs) != 1 {
		return nil, unavailable(fmt.Errorf("embedder returned %d vectors for one query", len(vecs)))
	}
	queryVec := vecs[0]

	// Rows whose stored embedding cannot be decoded are left out and logged.
	results := make([]SearchResult, 0, len(records))
	for i := range records {
		rec := &records[i]
		vec, err := rec.EmbeddingVector()
		if err != nil {
			s.logger.Printf("skip corrupt chunk: %v", err)
			continue
		}
		results = append(results, SearchResult{
			Content:      rec.Content,
			CourseTitle:  rec.CourseTitle,
			LessonNumber: rec.LessonNumber,
			ChunkIndex:   rec.ChunkIndex,
			Score:        ai.CosineSimilarity(queryVec, vec),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].CourseTitle != results[j].CourseTitle {
			return results[i].CourseTitle < results[j].CourseTitle
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
