package repository

import (
	"context"
	"errors"

	"github.com/structgen/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type GenerationRepository interface {
	Create(ctx context.Context, record *model.GenerationRecord) error
	Get(ctx context.Context, requestID string) (*model.GenerationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]model.GenerationRecord, error)
}
