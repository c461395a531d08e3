package repository

import (
	"context"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"gorm.io/gorm"
)

// MinerModelRepository 矿机型号仓库
type MinerModelRepository struct {
	db *gorm.DB
}

func NewMinerModelRepository(db *gorm.DB) *MinerModelRepository {
	return &MinerModelRepository{db: db}
}

// FindAll 查询型号列表
func (r *MinerModelRepository) FindAll(ctx context.Context, activeOnly bool) ([]entity.MinerModel, error) {
	var items []entity.MinerModel
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("brand ASC, model ASC").Find(&items).Error
	return items, err
}

func (r *MinerModelRepository) FindByID(ctx context.Context, id string) (*entity.MinerModel, error) {
	var m entity.MinerModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MinerModelRepository) Create(ctx context.Context, m *entity.MinerModel) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MinerModelRepository) Update(ctx context.Context, m *entity.MinerModel) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// WarrantyProfileRepository 保修方案仓库
type WarrantyProfileRepository struct {
	db *gorm.DB
}

func NewWarrantyProfileRepository(db *gorm.DB) *WarrantyProfileRepository {
	return &WarrantyProfileRepository{db: db}
}

func (r *WarrantyProfileRepository) FindAll(ctx context.Context, activeOnly bool) ([]entity.WarrantyProfile, error) {
	var items []entity.WarrantyProfile
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("duration_days ASC, name ASC").Find(&items).Error
	return items, err
}

func (r *WarrantyProfileRepository) FindByID(ctx context.Context, id string) (*entity.WarrantyProfile, error) {
	var p entity.WarrantyProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *WarrantyProfileRepository) Create(ctx context.Context, p *entity.WarrantyProfile) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *WarrantyProfileRepository) Update(ctx context.Context, p *entity.WarrantyProfile) error {
	return r.db.WithContext(ctx).Save(p).Error
}
