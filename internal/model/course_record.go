package model

import (
	"encoding/json"
	"time"
)

// CourseRecord is one row of the course_catalog collection.
// Lessons are serialized so a lesson reference resolves without a join.
type CourseRecord struct {
	Title       string    `gorm:"primaryKey;size:255" json:"title"`
	Instructor  string    `gorm:"size:255" json:"instructor"`
	Link        string    `gorm:"size:512" json:"course_link"`
	LessonsJSON string    `gorm:"column:lessons_json;type:text" json:"-"`
	LessonCount int       `gorm:"not null;default:0" json:"lesson_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CourseRecord) TableName() string {
	return "course_catalog"
}

// NewCourseRecord builds the catalog row for a parsed course.
func NewCourseRecord(course Course) (*CourseRecord, error) {
	lessons := course.Lessons
	if lessons == nil {
		lessons = []Lesson{}
	}
	raw, err := json.Marshal(lessons)
	if err != nil {
		return nil, err
	}
	return &CourseRecord{
		Title:       course.Title,
		Instructor:  course.Instructor,
		Link:        course.Link,
		LessonsJSON: string(raw),
		LessonCount: len(lessons),
	}, nil
}

// Course rebuilds the parsed course; an unreadable lesson list yields no lessons.
func (r *CourseRecord) Course() Course {
	var lessons []Lesson
	if r.LessonsJSON != "" {
		_ = json.Unmarshal([]byte(r.LessonsJSON), &lessons)
	}
	return Course{
		Title:      r.Title,
		Link:       r.Link,
		Instructor: r.Instructor,
		Lessons:    lessons,
	}
}
