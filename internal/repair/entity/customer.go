package entity

import (
	"time"
)

// Customer 客户
type Customer struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	CustomerCode string    `json:"customer_code" gorm:"size:32;not null;uniqueIndex"`
	Name         string    `json:"name" gorm:"size:200;not null"`
	Phone        string    `json:"phone" gorm:"size:32;index"`
	Email        string    `json:"email" gorm:"size:100"`
	Address      string    `json:"address" gorm:"size:500"`
	LineID       string    `json:"line_id" gorm:"size:64"`
	Notes        string    `json:"notes" gorm:"type:text"`
	CreatedBy    string    `json:"created_by" gorm:"size:36"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Customer) TableName() string {
	return "repair_customers"
}

// MinerModel 矿机型号
type MinerModel struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	Brand      string    `json:"brand" gorm:"size:64;not null"`
	Model      string    `json:"model" gorm:"size:100;not null"`
	Hashrate   string    `json:"hashrate" gorm:"size:32"`
	PowerWatts int       `json:"power_watts"`
	Notes      string    `json:"notes" gorm:"type:text"`
	Active     bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (MinerModel) TableName() string {
	return "repair_miner_models"
}

// WarrantyProfile 保修方案
type WarrantyProfile struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	DurationDays int       `json:"duration_days" gorm:"not null;default:0"`
	Terms        string    `json:"terms" gorm:"type:text"`
	Active       bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (WarrantyProfile) TableName() string {
	return "repair_warranty_profiles"
}
