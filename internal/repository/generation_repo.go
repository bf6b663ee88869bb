package repository

import (
	"context"
	"errors"

	"github.com/structgen/backend/internal/model"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type generationRepository struct {
	db *gorm.DB
}

func NewGenerationRepository(db *gorm.DB) GenerationRepository {
	return &generationRepository{db: db}
}

func (r *generationRepository) Create(ctx context.Context, record *model.GenerationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *generationRepository) Get(ctx context.Context, requestID string) (*model.GenerationRecord, error) {
	var record model.GenerationRecord
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecent 按创建时间倒序，limit 超出范围时取默认值或上限
func (r *generationRepository) ListRecent(ctx context.Context, limit int) ([]model.GenerationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var records []model.GenerationRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
