package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"gorm.io/gorm"
)

// CustomerRepository 客户仓库
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindAll 查询客户列表
func (r *CustomerRepository) FindAll(ctx context.Context, page, pageSize int, search string) ([]entity.Customer, int64, error) {
	var items []entity.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Customer{})
	if kw := strings.ToLower(strings.TrimSpace(search)); kw != "" {
		query = query.Where("LOWER(name) LIKE ? OR LOWER(customer_code) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?",
			likePattern(kw), likePattern(kw), likePattern(kw), likePattern(kw))
	}

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

// FindByID 根据ID查找客户
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*entity.Customer, error) {
	var customer entity.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, notFound(err)
	}
	return &customer, nil
}

// Create 创建客户
func (r *CustomerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	if customer.ID == "" {
		customer.ID = newID()
	}
	return r.db.WithContext(ctx).Create(customer).Error
}

// Update 更新客户
func (r *CustomerRepository) Update(ctx context.Context, customer *entity.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

// GenerateCode 生成客户编码 CUS-{至少4位}，按长度再按字典序取最大编码
func (r *CustomerRepository) GenerateCode(ctx context.Context) (string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&entity.Customer{}).
		Where("customer_code LIKE ?", "CUS-%").
		Order("LENGTH(customer_code) DESC, customer_code DESC").
		Limit(1).
		Pluck("customer_code", &codes).Error
	if err != nil {
		return "", err
	}

	var seq int
	if len(codes) > 0 {
		fmt.Sscanf(codes[0], "CUS-%d", &seq)
	}
	seq++
	return fmt.Sprintf("CUS-%04d", seq), nil
}

// DeleteIfNoJobs 仅当客户名下没有工单时删除，返回是否删除
func (r *CustomerRepository) DeleteIfNoJobs(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("NOT EXISTS (SELECT 1 FROM repair_jobs WHERE repair_jobs.customer_id = repair_customers.id)").
		Delete(&entity.Customer{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
