package repository

import (
	"context"
	"time"

	"phonebay/internal/model"

	"gorm.io/gorm"
)

// NotificationRepository 站内通知仓库接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, userID int64, unreadOnly bool, page Page) ([]model.Notification, int64, error)
	// MarkRead 仅标记属于 userID 的通知，返回是否命中
	MarkRead(ctx context.Context, userID, id int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) List(ctx context.Context, userID int64, unreadOnly bool, page Page) ([]model.Notification, int64, error) {
	var items []model.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		db = db.Where("read_at IS NULL")
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("id DESC").Scopes(page.Scope()).Find(&items).Error
	return items, total, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64, at time.Time) (bool, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if err != nil {
		return false, err
	}
	if n.ReadAt != nil {
		return true, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Notification{}).Where("id = ?", id).Update("read_at", at)
	return res.RowsAffected == 1, res.Error
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}
