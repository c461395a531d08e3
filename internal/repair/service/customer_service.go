package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CustomerService 客户服务
type CustomerService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewCustomerService(d Deps) *CustomerService {
	return &CustomerService{db: d.DB, repos: d.Repos, logger: d.Logger}
}

// CreateCustomerRequest 创建客户请求
type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Phone   string `json:"phone" validate:"max=32"`
	Email   string `json:"email" validate:"omitempty,email,max=100"`
	Address string `json:"address" validate:"max=500"`
	LineID  string `json:"line_id" validate:"max=64"`
	Notes   string `json:"notes" validate:"max=5000"`
}

func (r *CreateCustomerRequest) Validate() error { return validation.Struct(r) }

// UpdateCustomerRequest 更新客户请求
type UpdateCustomerRequest struct {
	Name    *string `json:"name" validate:"omitnil,min=1,max=200"`
	Phone   *string `json:"phone" validate:"omitnil,max=32"`
	Email   *string `json:"email" validate:"omitempty,email,max=100"`
	Address *string `json:"address" validate:"omitnil,max=500"`
	LineID  *string `json:"line_id" validate:"omitnil,max=64"`
	Notes   *string `json:"notes" validate:"omitnil,max=5000"`
}

func (r *UpdateCustomerRequest) Validate() error { return validation.Struct(r) }

// List 获取客户列表
func (s *CustomerService) List(ctx context.Context, actor policy.Actor, page, pageSize int, search string) ([]entity.Customer, int64, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, 0, err
	}
	return s.repos.Customer.FindAll(ctx, page, pageSize, search)
}

// Get 获取客户详情
func (s *CustomerService) Get(ctx context.Context, actor policy.Actor, id string) (*entity.Customer, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, err
	}
	customer, err := s.repos.Customer.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	return customer, nil
}

// Create 创建客户，编码冲突时重试
func (s *CustomerService) Create(ctx context.Context, actor policy.Actor, req *CreateCustomerRequest) (*entity.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCustomers, nil); err != nil {
		return nil, err
	}

	customer := &entity.Customer{
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
		LineID:    req.LineID,
		Notes:     req.Notes,
		CreatedBy: actor.ID,
	}
	for attempt := 0; attempt < 3; attempt++ {
		code, err := s.repos.Customer.GenerateCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate customer code: %w", err)
		}
		customer.ID = ""
		customer.CustomerCode = code
		err = s.repos.Customer.Create(ctx, customer)
		if err == nil {
			return customer, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create customer: %w", err)
		}
	}
	return nil, apperr.Conflict("could not allocate a customer code, retry")
}

// Update 更新客户
func (s *CustomerService) Update(ctx context.Context, actor policy.Actor, id string, req *UpdateCustomerRequest) (*entity.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCustomers, nil); err != nil {
		return nil, err
	}
	customer, err := s.repos.Customer.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "customer", id)
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.Email != nil {
		customer.Email = *req.Email
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.LineID != nil {
		customer.LineID = *req.LineID
	}
	if req.Notes != nil {
		customer.Notes = *req.Notes
	}

	if err := s.repos.Customer.Update(ctx, customer); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return customer, nil
}

// Delete 删除客户，仅限名下无工单
func (s *CustomerService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if err := policy.Authorize(actor, policy.ActionManageCustomers, nil); err != nil {
		return err
	}
	if _, err := s.repos.Customer.FindByID(ctx, id); err != nil {
		return notFoundOr(err, "customer", id)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		deleted, err := repos.Customer.DeleteIfNoJobs(ctx, id)
		if err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		if deleted {
			return nil
		}
		count, err := repos.Job.CountByCustomer(ctx, id)
		if err != nil {
			return err
		}
		return apperr.InvalidState("customer has %d job(s) and cannot be deleted", count).WithDetail("job_count", count)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Customer deleted", zap.String("customer_id", id), zap.String("operator_id", actor.ID))
	return nil
}
