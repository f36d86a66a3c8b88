package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyerfyer/rag-indexer/internal/models"
	"gorm.io/gorm"
)

// runRepository 运行记录仓储实现
type runRepository struct {
	db *gorm.DB // 数据库连接
}

// NewRunRepository 创建运行记录仓储
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Create 创建运行记录
func (r *runRepository) Create(ctx context.Context, run *models.IndexRun) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// Update 更新运行记录
func (r *runRepository) Update(ctx context.Context, run *models.IndexRun) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.db.WithContext(ctx).Save(run).Error
}

// GetByID 根据ID获取运行记录
func (r *runRepository) GetByID(ctx context.Context, id string) (*models.IndexRun, error) {
	var run models.IndexRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
		}
		return nil, err
	}
	return &run, nil
}

// List 按开始时间倒序列出运行记录
func (r *runRepository) List(ctx context.Context, document string, offset, limit int) ([]*models.IndexRun, int64, error) {
	var runs []*models.IndexRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IndexRun{})
	if document != "" {
		query = query.Where("document = ?", document)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	// 列表不返回每条记录的明细
	err := query.Omit("records").
		Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
