package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"course-rag/internal/model"
)

const insertBatchSize = 100

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) WithTx(tx *gorm.DB) *ContentRepository {
	return &ContentRepository{db: tx}
}

func (r *ContentRepository) CreateBatch(ctx context.Context, records []model.ContentRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&records, insertBatchSize).Error; err != nil {
		return fmt.Errorf("create course content batch failed: %w", err)
	}
	return nil
}

// List returns content rows, optionally restricted to one course and one
// lesson. An empty courseTitle and nil lesson return every row.
func (r *ContentRepository) List(ctx context.Context, courseTitle string, lesson *int) ([]model.ContentRecord, error) {
	q := r.db.WithContext(ctx)
	if courseTitle != "" {
		q = q.Where("course_title = ?", courseTitle)
	}
	if lesson != nil {
		q = q.Where("lesson_number = ?", *lesson)
	}
	var list []model.ContentRecord
	if err := q.Order("course_title ASC, chunk_index ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list course content failed: %w", err)
	}
	return list, nil
}

func (r *ContentRepository) CountByCourse(ctx context.Context, courseTitle string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ContentRecord{}).Where("course_title = ?", courseTitle).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count course content failed: %w", err)
	}
	return n, nil
}
