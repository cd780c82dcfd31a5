package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"course-rag/internal/ai"
	"course-rag/internal/model"
)

const OutlineToolName = "get_course_outline"

type CourseCatalog interface {
	CourseOutline(ctx context.Context, name string) (*model.Course, error)
}

// OutlineTool returns the title, link, instructor and lesson list of a course.
type OutlineTool struct {
	catalog CourseCatalog
}

func NewOutlineTool(catalog CourseCatalog) *OutlineTool {
	return &OutlineTool{catalog: catalog}
}

func (t *OutlineTool) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name:        OutlineToolName,
		Description: "Get the outline of a course: title, link, instructor and the numbered list of lessons",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"course_name": {
					Type:        jsonschema.String,
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			Required: []string{"course_name"},
		},
	}
}

func (t *OutlineTool) Execute(ctx context.Context, arguments string) (Result, error) {
	var args struct {
		CourseName string `json:"course_name"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if strings.TrimSpace(args.CourseName) == "" {
		return Result{}, fmt.Errorf("%w: course_name is required", ErrInvalidArguments)
	}

	course, err := t.catalog.CourseOutline(ctx, args.CourseName)
	if err != nil {
		return Result{}, err
	}
	if course == nil {
		return Result{Text: fmt.Sprintf("No course found matching '%s'.", args.CourseName)}, nil
	}
	return Result{
		Text:    FormatOutline(course),
		Sources: []model.Source{{CourseTitle: course.Title, Link: course.Link}},
	}, nil
}

// FormatOutline renders a course outline one field per line.
func FormatOutline(c *model.Course) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Course Title: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&sb, "Course Link: %s\n", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&sb, "Course Instructor: %s\n", c.Instructor)
	}
	if len(c.Lessons) == 0 {
		sb.WriteString("Lessons: none")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Lessons (%d):", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&sb, "\nLesson %d: %s", l.Number, l.Title)
	}
	return sb.String()
}
