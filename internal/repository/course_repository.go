package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"course-rag/internal/model"
)

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{db: tx}
}

func (r *CourseRepository) Create(ctx context.Context, rec *model.CourseRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create course failed: %w", err)
	}
	return nil
}

func (r *CourseRepository) GetByTitle(ctx context.Context, title string) (*model.CourseRecord, error) {
	var rec model.CourseRecord
	if err := r.db.WithContext(ctx).Where("title = ?", title).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query course by title failed: %w", err)
	}
	return &rec, nil
}

// GetByTitleFold matches the title case-insensitively; the alphabetically
// first title wins when several differ only in case.
func (r *CourseRepository) GetByTitleFold(ctx context.Context, title string) (*model.CourseRecord, error) {
	var rec model.CourseRecord
	err := r.db.WithContext(ctx).
		Where("LOWER(title) = LOWER(?)", title).
		Order("title ASC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query course by title failed: %w", err)
	}
	return &rec, nil
}

func (r *CourseRepository) ListTitles(ctx context.Context) ([]string, error) {
	var titles []string
	if err := r.db.WithContext(ctx).Model(&model.CourseRecord{}).Order("title ASC").Pluck("title", &titles).Error; err != nil {
		return nil, fmt.Errorf("list course titles failed: %w", err)
	}
	return titles, nil
}

func (r *CourseRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.CourseRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count courses failed: %w", err)
	}
	return n, nil
}
