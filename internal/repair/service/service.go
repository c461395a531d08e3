package service

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/notify"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/sse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 服务层依赖
type Deps struct {
	DB         *gorm.DB
	Repos      *repository.Repositories
	JobNumbers repository.JobNumberGenerator
	Notifier   notify.Notifier
	Hub        *sse.Hub
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// Services 服务集合
type Services struct {
	Job          *JobService
	Customer     *CustomerService
	Catalog      *CatalogService
	Part         *PartService
	User         *UserService
	Dashboard    *DashboardService
	Notification *NotificationService
}

// NewServices 创建服务集合
func NewServices(d Deps) *Services {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.JobNumbers == nil {
		d.JobNumbers = repository.NewDBJobNumbers(d.Repos.Job)
	}
	return &Services{
		Job:          NewJobService(d),
		Customer:     NewCustomerService(d),
		Catalog:      NewCatalogService(d),
		Part:         NewPartService(d),
		User:         NewUserService(d),
		Dashboard:    NewDashboardService(d),
		Notification: NewNotificationService(d),
	}
}

// notFoundOr 将仓库层 ErrNotFound 转为 NotFoundError
func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(resource, id)
	}
	return err
}

// staffRecipients 管理员与经理，用于内部通知
func staffRecipients(ctx context.Context, repos *repository.Repositories, logger *zap.Logger) []string {
	ids, err := repos.User.FindIDsByRoles(ctx, entity.RoleAdmin, entity.RoleManager)
	if err != nil {
		logger.Warn("Failed to resolve notification recipients", zap.Error(err))
		return nil
	}
	return ids
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
