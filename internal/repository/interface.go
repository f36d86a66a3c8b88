package repository

import (
	"context"

	"github.com/fyerfyer/rag-indexer/internal/models"
)

// RunRepository 索引运行记录仓储接口
type RunRepository interface {
	// Create 创建运行记录
	Create(ctx context.Context, run *models.IndexRun) error

	// Update 更新运行记录
	Update(ctx context.Context, run *models.IndexRun) error

	// GetByID 根据ID获取运行记录
	GetByID(ctx context.Context, id string) (*models.IndexRun, error)

	// List 按开始时间倒序列出运行记录，document为空时不过滤
	List(ctx context.Context, document string, offset, limit int) ([]*models.IndexRun, int64, error)
}
