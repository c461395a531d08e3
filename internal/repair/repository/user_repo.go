package repository

import (
	"context"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"gorm.io/gorm"
)

// UserRepository 用户仓库
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindAll 查询用户列表，role 为空时返回全部
func (r *UserRepository) FindAll(ctx context.Context, role entity.Role, activeOnly bool) ([]entity.User, error) {
	var items []entity.User
	query := r.db.WithContext(ctx)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("name ASC").Find(&items).Error
	return items, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindIDsByRoles 指定角色的启用用户ID（用于通知）
func (r *UserRepository) FindIDsByRoles(ctx context.Context, roles ...entity.Role) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("role IN ? AND active = ?", roles, true).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}
