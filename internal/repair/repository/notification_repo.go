package repository

import (
	"context"
	"time"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"gorm.io/gorm"
)

// NotificationRepository 站内通知仓库
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	return r.db.WithContext(ctx).Create(n).Error
}

// FindByUser 用户通知列表
func (r *NotificationRepository) FindByUser(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]entity.Notification, int64, error) {
	var items []entity.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("created_at DESC").
		Offset(offsetOf(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// FindByType 按类型查询通知
func (r *NotificationRepository) FindByType(ctx context.Context, typ string) ([]entity.Notification, error) {
	var items []entity.Notification
	err := r.db.WithContext(ctx).Where("type = ?", typ).Order("created_at ASC").Find(&items).Error
	return items, err
}

// MarkRead 标记已读，仅限本人通知
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&entity.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}
