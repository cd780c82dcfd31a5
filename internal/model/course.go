package model

import "fmt"

// Lesson describes one lesson of a course as parsed from its document.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is the parsed header and lesson list of one course document.
// Title is the primary key across the whole corpus.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson returns the lesson with the given number.
func (c *Course) Lesson(number int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l, true
		}
	}
	return Lesson{}, false
}

// Chunk is one retrievable slice of lesson text.
type Chunk struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Index        int    `json:"chunk_index"`
	Content      string `json:"content"`
}

// Source is the provenance of one retrieved chunk.
type Source struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Link         string `json:"link,omitempty"`
}

func (s Source) Label() string {
	if s.LessonNumber == nil {
		return s.CourseTitle
	}
	return fmt.Sprintf("%s - Lesson %d", s.CourseTitle, *s.LessonNumber)
}

// IntPtr is a small helper for optional lesson numbers.
func IntPtr(v int) *int {
	return &v
}
