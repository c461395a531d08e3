package repository

import (
	"context"
	"strings"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PartFilter 备件列表筛选条件
type PartFilter struct {
	Keyword    string
	LowStock   bool
	ActiveOnly bool
}

// PartRepository 备件库存仓库
type PartRepository struct {
	db *gorm.DB
}

func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

// Create 创建备件
func (r *PartRepository) Create(ctx context.Context, part *entity.Part) error {
	if part.ID == "" {
		part.ID = newID()
	}
	return r.db.WithContext(ctx).Create(part).Error
}

// Update 更新备件基础信息（不含库存）
func (r *PartRepository) Update(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).
		Model(part).
		Select("name", "description", "unit_price", "min_stock_qty", "location", "active", "updated_at").
		Updates(part).Error
}

// FindByID 查询备件
func (r *PartRepository) FindByID(ctx context.Context, id string) (*entity.Part, error) {
	var part entity.Part
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&part).Error; err != nil {
		return nil, notFound(err)
	}
	return &part, nil
}

// LockByID 加行锁查询备件（须在事务内调用）
func (r *PartRepository) LockByID(ctx context.Context, id string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&part).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &part, nil
}

// FindAll 查询备件列表
func (r *PartRepository) FindAll(ctx context.Context, page, pageSize int, f PartFilter) ([]entity.Part, int64, error) {
	var items []entity.Part
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Part{})
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		query = query.Where("LOWER(part_number) LIKE ? OR LOWER(name) LIKE ?", likePattern(kw), likePattern(kw))
	}
	if f.LowStock {
		query = query.Where("stock_qty <= min_stock_qty")
	}
	if f.ActiveOnly {
		query = query.Where("active = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("part_number ASC").
		Offset(offsetOf(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// FindLowStock 库存低于预警值的启用备件
func (r *PartRepository) FindLowStock(ctx context.Context) ([]entity.Part, error) {
	var items []entity.Part
	err := r.db.WithContext(ctx).
		Where("active = ? AND stock_qty <= min_stock_qty", true).
		Order("part_number ASC").
		Find(&items).Error
	return items, err
}

// CountLowStock 低库存备件数
func (r *PartRepository) CountLowStock(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Part{}).
		Where("active = ? AND stock_qty <= min_stock_qty", true).
		Count(&count).Error
	return count, err
}

// DecrementStock 扣减库存，库存不足时返回 ErrInsufficient 且不做修改
func (r *PartRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Part{}).
		Where("id = ? AND stock_qty >= ?", id, qty).
		Update("stock_qty", gorm.Expr("stock_qty - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficient
	}
	return nil
}

// IncrementStock 增加库存
func (r *PartRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Part{}).
		Where("id = ?", id).
		Update("stock_qty", gorm.Expr("stock_qty + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTransaction 写入库存流水
func (r *PartRepository) CreateTransaction(ctx context.Context, tx *entity.PartTransaction) error {
	if tx.ID == "" {
		tx.ID = newID()
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

// FindTransactions 备件库存流水
func (r *PartRepository) FindTransactions(ctx context.Context, partID string, page, pageSize int) ([]entity.PartTransaction, int64, error) {
	var items []entity.PartTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PartTransaction{}).Where("part_id = ?", partID)
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
