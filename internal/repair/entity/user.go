package entity

import (
	"time"
)

// Role 用户角色
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleManager      Role = "MANAGER"
	RoleTechnician   Role = "TECHNICIAN"
	RoleReceptionist Role = "RECEPTIONIST"
)

// AllRoles 全部角色
var AllRoles = []Role{RoleAdmin, RoleManager, RoleTechnician, RoleReceptionist}

func (r Role) Valid() bool {
	for _, v := range AllRoles {
		if v == r {
			return true
		}
	}
	return false
}

// CanRepair 可被指派维修任务的角色
func (r Role) CanRepair() bool {
	return r == RoleTechnician
}

// User 系统用户（登录凭证由外部认证服务签发）
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Username  string    `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:100"`
	Role      Role      `json:"role" gorm:"size:20;not null;index"`
	Active    bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "repair_users"
}
