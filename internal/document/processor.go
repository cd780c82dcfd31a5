package document

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"course-rag/internal/model"
)

var ErrMalformedDocument = errors.New("malformed course document")

var (
	courseTitlePattern      = regexp.MustCompile(`(?i)^course title:\s*(.*)$`)
	courseLinkPattern       = regexp.MustCompile(`(?i)^course link:\s*(.*)$`)
	courseInstructorPattern = regexp.MustCompile(`(?i)^course instructor:\s*(.*)$`)
	lessonPattern           = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.*)$`)
	lessonLinkPattern       = regexp.MustCompile(`(?i)^lesson link:\s*(.*)$`)
)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// LastLessonCoursePrefix keeps the historical annotation of the final
	// lesson of every document: each of its chunks is prefixed with
	// "Course <title> Lesson <n> content: " instead of only the first chunk
	// getting "Lesson <n> content: ". Retrieval quality of existing indexes
	// was measured with this behaviour, so it stays on by default. The label
	// is added on top of the chunker's size bound.
	LastLessonCoursePrefix bool
}

// Processor turns a raw course document into a course and its chunks.
type Processor struct {
	chunker                *Chunker
	lastLessonCoursePrefix bool
}

func NewProcessor(opts Options) *Processor {
	return &Processor{
		chunker:                NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		lastLessonCoursePrefix: opts.LastLessonCoursePrefix,
	}
}

func (p *Processor) Chunker() *Chunker {
	return p.chunker
}

type lessonBody struct {
	lesson model.Lesson
	lines  []string
}

// Process parses the document header and lessons and chunks every lesson body.
func (p *Processor) Process(text string) (*model.Course, []model.Chunk, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}
	m := courseTitlePattern.FindStringSubmatch(strings.TrimSpace(lines[i]))
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return nil, nil, fmt.Errorf("%w: missing course title", ErrMalformedDocument)
	}
	course := &model.Course{Title: strings.TrimSpace(m[1])}
	i++

	// Optional header fields, in any order, until the first other line.
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if m := courseLinkPattern.FindStringSubmatch(line); m != nil {
			course.Link = strings.TrimSpace(m[1])
			continue
		}
		if m := courseInstructorPattern.FindStringSubmatch(line); m != nil {
			course.Instructor = strings.TrimSpace(m[1])
			continue
		}
		break
	}

	var (
		preamble []string
		bodies   []*lessonBody
		current  *lessonBody
	)
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if m := lessonPattern.FindStringSubmatch(line); m != nil {
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, nil, fmt.Errorf("%w: lesson number %q", ErrMalformedDocument, m[1])
			}
			current = &lessonBody{lesson: model.Lesson{Number: number, Title: strings.TrimSpace(m[2])}}
			bodies = append(bodies, current)
			if i+1 < len(lines) {
				if lm := lessonLinkPattern.FindStringSubmatch(strings.TrimSpace(lines[i+1])); lm != nil {
					current.lesson.Link = strings.TrimSpace(lm[1])
					i++
				}
			}
			continue
		}
		if current == nil {
			preamble = append(preamble, lines[i])
			continue
		}
		current.lines = append(current.lines, lines[i])
	}

	// Text before the first lesson marker, or the whole body of a document
	// without lessons, is stored without a lesson number.
	var chunks []model.Chunk
	for _, text := range p.chunker.Split(strings.Join(preamble, "\n")) {
		chunks = append(chunks, model.Chunk{
			CourseTitle: course.Title,
			Index:       len(chunks),
			Content:     text,
		})
	}

	for n, body := range bodies {
		course.Lessons = append(course.Lessons, body.lesson)
		isLast := n == len(bodies)-1
		for idx, text := range p.chunker.Split(strings.Join(body.lines, "\n")) {
			chunks = append(chunks, model.Chunk{
				CourseTitle:  course.Title,
				LessonNumber: model.IntPtr(body.lesson.Number),
				Index:        len(chunks),
				Content:      p.annotate(course.Title, body.lesson.Number, idx, isLast, text),
			})
		}
	}
	return course, chunks, nil
}

func (p *Processor) annotate(courseTitle string, lesson, idx int, isLast bool, text string) string {
	if isLast && p.lastLessonCoursePrefix {
		return fmt.Sprintf("Course %s Lesson %d content: %s", courseTitle, lesson, text)
	}
	if idx == 0 {
		return fmt.Sprintf("Lesson %d content: %s", lesson, text)
	}
	return text
}
