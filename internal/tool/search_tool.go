package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"course-rag/internal/ai"
	"course-rag/internal/model"
	"course-rag/internal/vectorstore"
)

const SearchToolName = "search_course_content"

// CourseSearcher is the part of the vector store the search tool needs.
type CourseSearcher interface {
	Search(ctx context.Context, q vectorstore.SearchQuery) ([]vectorstore.SearchResult, error)
	LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error)
}

type SearchTool struct {
	store CourseSearcher
}

func NewSearchTool(store CourseSearcher) *SearchTool {
	return &SearchTool{store: store}
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

func (t *SearchTool) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {
					Type:        jsonschema.String,
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        jsonschema.String,
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        jsonschema.Integer,
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, arguments string) (Result, error) {
	var args searchArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return Result{}, fmt.Errorf("%w: query is required", ErrInvalidArguments)
	}

	results, err := t.store.Search(ctx, vectorstore.SearchQuery{
		Query:        args.Query,
		CourseName:   args.CourseName,
		LessonNumber: args.LessonNumber,
	})
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{Text: noResultsMessage(args)}, nil
	}

	links := make(map[string]string)
	blocks := make([]string, 0, len(results))
	sources := make([]model.Source, 0, len(results))
	for _, r := range results {
		src := model.Source{CourseTitle: r.CourseTitle, LessonNumber: r.LessonNumber}
		if r.LessonNumber != nil {
			key := fmt.Sprintf("%s\x00%d", r.CourseTitle, *r.LessonNumber)
			link, ok := links[key]
			if !ok {
				link, err = t.store.LessonLink(ctx, r.CourseTitle, *r.LessonNumber)
				if err != nil {
					return Result{}, err
				}
				links[key] = link
			}
			src.Link = link
		}
		sources = append(sources, src)
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", src.Label(), r.Content))
	}
	return Result{Text: strings.Join(blocks, "\n\n"), Sources: sources}, nil
}

func noResultsMessage(args searchArgs) string {
	var sb strings.Builder
	sb.WriteString("No relevant content found")
	if args.CourseName != "" {
		fmt.Fprintf(&sb, " in course '%s'", args.CourseName)
	}
	if args.LessonNumber != nil {
		fmt.Fprintf(&sb, " in lesson %d", *args.LessonNumber)
	}
	sb.WriteString(".")
	return sb.String()
}
