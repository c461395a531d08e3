package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified concurrently")
	ErrInsufficient    = errors.New("insufficient stock")
)

// Repositories 维修业务仓库集合
type Repositories struct {
	Job             *JobRepository
	Customer        *CustomerRepository
	MinerModel      *MinerModelRepository
	WarrantyProfile *WarrantyProfileRepository
	User            *UserRepository
	Part            *PartRepository
	Activity        *ActivityRepository
	Notification    *NotificationRepository
}

// NewRepositories 创建维修业务仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Job:             NewJobRepository(db),
		Customer:        NewCustomerRepository(db),
		MinerModel:      NewMinerModelRepository(db),
		WarrantyProfile: NewWarrantyProfileRepository(db),
		User:            NewUserRepository(db),
		Part:            NewPartRepository(db),
		Activity:        NewActivityRepository(db),
		Notification:    NewNotificationRepository(db),
	}
}

// WithTx 返回绑定到事务的仓库集合
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

func newID() string {
	return uuid.New().String()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func offsetOf(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

func likePattern(s string) string {
	return "%" + s + "%"
}
