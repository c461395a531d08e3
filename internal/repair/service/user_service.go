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
	"gorm.io/gorm"
)

// UserService 用户服务（账号凭证由外部认证服务管理）
type UserService struct {
	repos *repository.Repositories
}

func NewUserService(d Deps) *UserService {
	return &UserService{repos: d.Repos}
}

// CreateUserRequest 创建用户请求；id 与认证服务中的用户ID一致
type CreateUserRequest struct {
	ID       string `json:"id" validate:"omitempty,uuid"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=100"`
	Role     string `json:"role" validate:"required,role"`
}

func (r *CreateUserRequest) Validate() error { return validation.Struct(r) }

// UpdateUserRequest 更新用户请求
type UpdateUserRequest struct {
	Name   *string `json:"name" validate:"omitnil,min=1,max=100"`
	Email  *string `json:"email" validate:"omitempty,email,max=100"`
	Role   *string `json:"role" validate:"omitnil,role"`
	Active *bool   `json:"active"`
}

func (r *UpdateUserRequest) Validate() error { return validation.Struct(r) }

// List 用户列表；role 为空返回全部
func (s *UserService) List(ctx context.Context, actor policy.Actor, role string, activeOnly bool) ([]entity.User, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, err
	}
	r := entity.Role(role)
	if role != "" && !r.Valid() {
		return nil, apperr.InvalidField("role", "must be one of [ADMIN MANAGER TECHNICIAN RECEPTIONIST]")
	}
	return s.repos.User.FindAll(ctx, r, activeOnly)
}

// Me 当前登录用户
func (s *UserService) Me(ctx context.Context, actor policy.Actor) (*entity.User, error) {
	if err := policy.Authorize(actor, policy.ActionViewNotifications, nil); err != nil {
		return nil, err
	}
	u, err := s.repos.User.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, notFoundOr(err, "user", actor.ID)
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, actor policy.Actor, req *CreateUserRequest) (*entity.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	u := &entity.User{
		ID:       req.ID,
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Role:     entity.Role(req.Role),
		Active:   true,
	}
	err := s.repos.User.Create(ctx, u)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.InvalidField("username", "is already in use")
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, actor policy.Actor, id string, req *UpdateUserRequest) (*entity.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	u, err := s.repos.User.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	if id == actor.ID && req.Active != nil && !*req.Active {
		return nil, apperr.InvalidState("you cannot deactivate your own account")
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Role != nil {
		u.Role = entity.Role(*req.Role)
	}
	if req.Active != nil {
		u.Active = *req.Active
	}
	if err := s.repos.User.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}
