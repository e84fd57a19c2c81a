package service

import (
	"context"
	"errors"
	"time"

	"phonebay/internal/api/dto"
	"phonebay/internal/model"
	"phonebay/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotifyInput 通知内容
type NotifyInput struct {
	UserID int64
	Type   string
	Title  string
	Body   string
	Data   map[string]interface{}

	// SMS 同时发送短信；优先使用 SMSTemplate，模板不可用时直接发送 Body
	SMS         bool
	SMSTemplate string
	SMSVars     map[string]string
}

// NotificationService 站内通知
type NotificationService struct {
	repo     repository.NotificationRepository
	users    repository.UserRepository
	sms      SMSSender
	settings *SettingsService
	now      func() time.Time
	log      *zap.Logger
}

// NewNotificationService 创建通知服务
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, sms SMSSender, settings *SettingsService) *NotificationService {
	return &NotificationService{
		repo:     repo,
		users:    users,
		sms:      sms,
		settings: settings,
		now:      time.Now,
		log:      zap.L().Named("notification"),
	}
}

// Notify 写入站内通知，按需发送短信（短信失败只记日志）
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*model.Notification, error) {
	n := &model.Notification{
		UserID: in.UserID,
		Type:   in.Type,
		Title:  in.Title,
		Body:   in.Body,
		Data:   in.Data,
	}
	if n.Type == "" {
		n.Type = model.NotifySystem
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if in.SMS && s.smsEnabled(ctx) {
		if err := s.sendSMS(ctx, in); err != nil {
			s.log.Warn("通知短信发送失败", zap.Int64("user_id", in.UserID), zap.Error(err))
		}
	}
	return n, nil
}

func (s *NotificationService) smsEnabled(ctx context.Context) bool {
	if s.sms == nil {
		return false
	}
	if s.settings == nil {
		return true
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return true
	}
	return st.SMSNotificationsEnabled
}

func (s *NotificationService) sendSMS(ctx context.Context, in NotifyInput) error {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if in.SMSTemplate != "" {
		_, err := s.sms.SendTemplate(ctx, in.SMSTemplate, user.Phone, in.SMSVars)
		if !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	_, err = s.sms.Send(ctx, user.Phone, in.Body, in.SMSTemplate)
	return err
}

// List 通知列表
func (s *NotificationService) List(ctx context.Context, userID int64, req *dto.ListNotificationsRequest) ([]model.Notification, int64, error) {
	return s.repo.List(ctx, userID, req.UnreadOnly, repository.Page{Page: req.Page, PageSize: req.PageSize})
}

// MarkRead 标记已读，只能操作自己的通知
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	_, err := s.repo.MarkRead(ctx, userID, id, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundf("通知不存在")
	}
	return err
}

// MarkAllRead 全部已读，返回本次标记数量
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

// UnreadCount 未读数
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}
