package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContentRecord stores a chunk and its embedding in the course_content collection.
// Embedding is stored as JSON array of float32 for portability across SQL drivers.
type ContentRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseTitle  string    `gorm:"size:255;not null;uniqueIndex:idx_course_chunk,priority:1;index" json:"course_title"`
	LessonNumber *int      `gorm:"index" json:"lesson_number,omitempty"`
	ChunkIndex   int       `gorm:"not null;uniqueIndex:idx_course_chunk,priority:2" json:"chunk_index"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Embedding    string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ContentRecord) TableName() string {
	return "course_content"
}

// EmbeddingVector returns the parsed embedding slice.
func (c *ContentRecord) EmbeddingVector() ([]float32, error) {
	if c.Embedding == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(c.Embedding), &v); err != nil {
		return nil, fmt.Errorf("decode embedding of %s chunk %d failed: %w", c.CourseTitle, c.ChunkIndex, err)
	}
	return v, nil
}

// SetEmbedding stores the embedding as JSON.
func (c *ContentRecord) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
