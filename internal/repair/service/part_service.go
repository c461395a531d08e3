package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/notify"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PartService 备件库存服务
type PartService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewPartService(d Deps) *PartService {
	return &PartService{
		db:       d.DB,
		repos:    d.Repos,
		notifier: d.Notifier,
		clock:    d.Clock,
		logger:   d.Logger,
	}
}

// CreatePartRequest 创建备件请求
type CreatePartRequest struct {
	PartNumber  string  `json:"part_number" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	StockQty    int     `json:"stock_qty" validate:"gte=0"`
	MinStockQty int     `json:"min_stock_qty" validate:"gte=0"`
	Location    string  `json:"location" validate:"max=100"`
}

func (r *CreatePartRequest) Validate() error { return validation.Struct(r) }

// UpdatePartRequest 更新备件请求（库存只能通过补货或领用变动）
type UpdatePartRequest struct {
	Name        *string  `json:"name" validate:"omitnil,min=1,max=200"`
	Description *string  `json:"description" validate:"omitnil,max=5000"`
	UnitPrice   *float64 `json:"unit_price" validate:"omitnil,gte=0"`
	MinStockQty *int     `json:"min_stock_qty" validate:"omitnil,gte=0"`
	Location    *string  `json:"location" validate:"omitnil,max=100"`
	Active      *bool    `json:"active"`
}

func (r *UpdatePartRequest) Validate() error { return validation.Struct(r) }

// RestockRequest 补货请求
type RestockRequest struct {
	Quantity int    `json:"quantity" validate:"gte=1"`
	Notes    string `json:"notes" validate:"max=500"`
}

func (r *RestockRequest) Validate() error { return validation.Struct(r) }

func (s *PartService) List(ctx context.Context, actor policy.Actor, page, pageSize int, filter repository.PartFilter) ([]entity.Part, int64, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, 0, err
	}
	return s.repos.Part.FindAll(ctx, page, pageSize, filter)
}

func (s *PartService) Get(ctx context.Context, actor policy.Actor, id string) (*entity.Part, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, err
	}
	part, err := s.repos.Part.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "part", id)
	}
	return part, nil
}

// Create 创建备件，初始库存写入流水
func (s *PartService) Create(ctx context.Context, actor policy.Actor, req *CreatePartRequest) (*entity.Part, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCatalog, nil); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	part := &entity.Part{
		PartNumber:  req.PartNumber,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		StockQty:    req.StockQty,
		MinStockQty: req.MinStockQty,
		Location:    req.Location,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Part.Create(ctx, part); err != nil {
			return err
		}
		if part.StockQty == 0 {
			return nil
		}
		return repos.Part.CreateTransaction(ctx, &entity.PartTransaction{
			PartID:       part.ID,
			Type:         entity.PartTxAdjust,
			Quantity:     part.StockQty,
			BalanceAfter: part.StockQty,
			Notes:        "opening balance",
			CreatedBy:    actor.ID,
			CreatedAt:    now,
		})
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.InvalidField("part_number", "is already in use")
	}
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	return part, nil
}

func (s *PartService) Update(ctx context.Context, actor policy.Actor, id string, req *UpdatePartRequest) (*entity.Part, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCatalog, nil); err != nil {
		return nil, err
	}
	part, err := s.repos.Part.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "part", id)
	}
	if req.Name != nil {
		part.Name = *req.Name
	}
	if req.Description != nil {
		part.Description = *req.Description
	}
	if req.UnitPrice != nil {
		part.UnitPrice = *req.UnitPrice
	}
	if req.MinStockQty != nil {
		part.MinStockQty = *req.MinStockQty
	}
	if req.Location != nil {
		part.Location = *req.Location
	}
	if req.Active != nil {
		part.Active = *req.Active
	}
	part.UpdatedAt = s.clock.Now()
	if err := s.repos.Part.Update(ctx, part); err != nil {
		return nil, fmt.Errorf("update part: %w", err)
	}
	return part, nil
}

// Restock 补货入库
func (s *PartService) Restock(ctx context.Context, actor policy.Actor, id string, req *RestockRequest) (*entity.Part, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCatalog, nil); err != nil {
		return nil, err
	}

	var part *entity.Part
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		p, err := repos.Part.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "part", id)
		}
		if err := repos.Part.IncrementStock(ctx, p.ID, req.Quantity); err != nil {
			return err
		}
		p.StockQty += req.Quantity
		part = p
		return repos.Part.CreateTransaction(ctx, &entity.PartTransaction{
			PartID:       p.ID,
			Type:         entity.PartTxRestock,
			Quantity:     req.Quantity,
			BalanceAfter: p.StockQty,
			Notes:        req.Notes,
			CreatedBy:    actor.ID,
			CreatedAt:    now,
		})
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("restock part: %w", err)
	}
	s.logger.Info("Part restocked",
		zap.String("part_number", part.PartNumber),
		zap.Int("quantity", req.Quantity),
		zap.Int("stock_qty", part.StockQty),
	)
	return part, nil
}

// Ledger 备件库存流水
func (s *PartService) Ledger(ctx context.Context, actor policy.Actor, id string, page, pageSize int) ([]entity.PartTransaction, int64, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, 0, err
	}
	if _, err := s.repos.Part.FindByID(ctx, id); err != nil {
		return nil, 0, notFoundOr(err, "part", id)
	}
	return s.repos.Part.FindTransactions(ctx, id, page, pageSize)
}

// NotifyLowStock 低库存汇总提醒，返回备件数
func (s *PartService) NotifyLowStock(ctx context.Context) (int, error) {
	parts, err := s.repos.Part.FindLowStock(ctx)
	if err != nil {
		return 0, fmt.Errorf("find low stock parts: %w", err)
	}
	if len(parts) == 0 {
		return 0, nil
	}
	recipients := staffRecipients(ctx, s.repos, s.logger)
	now := s.clock.Now()
	for i := range parts {
		s.notifier.Notify(ctx, lowStockEvent(&parts[i], recipients, now))
	}
	return len(parts), nil
}
