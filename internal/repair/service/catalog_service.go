package service

import (
	"context"
	"fmt"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/validation"
)

// CatalogService 矿机型号与保修方案
type CatalogService struct {
	repos *repository.Repositories
}

func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{repos: d.Repos}
}

// MinerModelRequest 型号创建/更新请求
type MinerModelRequest struct {
	Brand      string `json:"brand" validate:"required,max=64"`
	Model      string `json:"model" validate:"required,max=100"`
	Hashrate   string `json:"hashrate" validate:"max=32"`
	PowerWatts int    `json:"power_watts" validate:"gte=0"`
	Notes      string `json:"notes" validate:"max=5000"`
	Active     *bool  `json:"active"`
}

func (r *MinerModelRequest) Validate() error { return validation.Struct(r) }

// WarrantyProfileRequest 保修方案创建/更新请求
type WarrantyProfileRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	DurationDays int    `json:"duration_days" validate:"gte=0"`
	Terms        string `json:"terms" validate:"max=5000"`
	Active       *bool  `json:"active"`
}

func (r *WarrantyProfileRequest) Validate() error { return validation.Struct(r) }

func (s *CatalogService) ListMinerModels(ctx context.Context, actor policy.Actor, activeOnly bool) ([]entity.MinerModel, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, err
	}
	return s.repos.MinerModel.FindAll(ctx, activeOnly)
}

func (s *CatalogService) CreateMinerModel(ctx context.Context, actor policy.Actor, req *MinerModelRequest) (*entity.MinerModel, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCatalog, nil); err != nil {
		return nil, err
	}
	m := &entity.MinerModel{
		Brand:      req.Brand,
		Model:      req.Model,
		Hashrate:   req.Hashrate,
		PowerWatts: req.PowerWatts,
		Notes:      req.Notes,
		Active:     true,
	}
	if err := s.repos.MinerModel.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create miner model: %w", err)
	}
	return m, nil
}

// UpdateMinerModel 更新型号；停用型号通过 active=false，不做物理删除
func (s *CatalogService) UpdateMinerModel(ctx context.Context, actor policy.Actor, id string, req *MinerModelRequest) (*entity.MinerModel, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCatalog, nil); err != nil {
		return nil, err
	}
	m, err := s.repos.MinerModel.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "miner model", id)
	}
	m.Brand = req.Brand
	m.Model = req.Model
	m.Hashrate = req.Hashrate
	m.PowerWatts = req.PowerWatts
	m.Notes = req.Notes
	if req.Active != nil {
		m.Active = *req.Active
	}
	if err := s.repos.MinerModel.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update miner model: %w", err)
	}
	return m, nil
}

func (s *CatalogService) ListWarrantyProfiles(ctx context.Context, actor policy.Actor, activeOnly bool) ([]entity.WarrantyProfile, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, err
	}
	return s.repos.WarrantyProfile.FindAll(ctx, activeOnly)
}

func (s *CatalogService) CreateWarrantyProfile(ctx context.Context, actor policy.Actor, req *WarrantyProfileRequest) (*entity.WarrantyProfile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCatalog, nil); err != nil {
		return nil, err
	}
	p := &entity.WarrantyProfile{
		Name:         req.Name,
		DurationDays: req.DurationDays,
		Terms:        req.Terms,
		Active:       true,
	}
	if err := s.repos.WarrantyProfile.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create warranty profile: %w", err)
	}
	return p, nil
}

func (s *CatalogService) UpdateWarrantyProfile(ctx context.Context, actor policy.Actor, id string, req *WarrantyProfileRequest) (*entity.WarrantyProfile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionManageCatalog, nil); err != nil {
		return nil, err
	}
	p, err := s.repos.WarrantyProfile.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "warranty profile", id)
	}
	p.Name = req.Name
	p.DurationDays = req.DurationDays
	p.Terms = req.Terms
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := s.repos.WarrantyProfile.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update warranty profile: %w", err)
	}
	return p, nil
}
