package repository

import (
	"context"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"gorm.io/gorm"
)

// ActivityRepository 工单操作日志仓库
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 写入操作日志
func (r *ActivityRepository) Create(ctx context.Context, a *entity.JobActivity) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// FindByJob 工单操作日志（按时间正序）
func (r *ActivityRepository) FindByJob(ctx context.Context, jobID string) ([]entity.JobActivity, error) {
	var items []entity.JobActivity
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
