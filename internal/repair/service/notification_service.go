package service

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/notify"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/sse"
	"go.uber.org/zap"
)

// NotificationService 站内通知：既是 notify.Sink，也提供查询与已读
type NotificationService struct {
	repos  *repository.Repositories
	hub    *sse.Hub
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewNotificationService(d Deps) *NotificationService {
	return &NotificationService{repos: d.Repos, hub: d.Hub, clock: d.Clock, logger: d.Logger}
}

// customerVisible 写入客户站内信的事件类型
var customerVisible = map[string]bool{
	notify.EventJobCompleted: true,
}

func (s *NotificationService) Name() string { return "in_app" }

// Send 为每个接收人写入通知并推送 SSE
func (s *NotificationService) Send(ctx context.Context, ev notify.Event) error {
	var rows []*entity.Notification
	seen := make(map[string]bool, len(ev.UserIDs))
	for _, uid := range ev.UserIDs {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		userID := uid
		rows = append(rows, s.newRow(ev, &userID, nil))
	}
	if customerVisible[ev.Type] && ev.CustomerID != "" {
		customerID := ev.CustomerID
		rows = append(rows, s.newRow(ev, nil, &customerID))
	}

	for _, n := range rows {
		if err := s.repos.Notification.Create(ctx, n); err != nil {
			return fmt.Errorf("store %s notification: %w", ev.Type, err)
		}
		if s.hub != nil && n.UserID != nil {
			s.hub.PublishJSON(*n.UserID, "notification", n)
		}
	}
	return nil
}

func (s *NotificationService) newRow(ev notify.Event, userID, customerID *string) *entity.Notification {
	createdAt := ev.OccurredAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	return &entity.Notification{
		UserID:     userID,
		CustomerID: customerID,
		Type:       ev.Type,
		Title:      ev.Title,
		Body:       ev.Message,
		JobID:      ev.JobID,
		PartID:     ev.PartID,
		CreatedAt:  createdAt,
	}
}

// List 当前用户的通知
func (s *NotificationService) List(ctx context.Context, actor policy.Actor, unreadOnly bool, page, pageSize int) ([]entity.Notification, int64, error) {
	if err := policy.Authorize(actor, policy.ActionViewNotifications, nil); err != nil {
		return nil, 0, err
	}
	return s.repos.Notification.FindByUser(ctx, actor.ID, unreadOnly, page, pageSize)
}

// MarkRead 标记已读
func (s *NotificationService) MarkRead(ctx context.Context, actor policy.Actor, id string) error {
	if err := policy.Authorize(actor, policy.ActionViewNotifications, nil); err != nil {
		return err
	}
	if err := s.repos.Notification.MarkRead(ctx, id, actor.ID, s.clock.Now()); err != nil {
		return notFoundOr(err, "notification", id)
	}
	return nil
}
