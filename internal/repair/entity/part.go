package entity

import (
	"time"
)

// PartTransactionType 备件库存流水类型
const (
	PartTxJobUsage = "JOB_USAGE" // 工单领用
	PartTxRestock  = "RESTOCK"   // 补货入库
	PartTxAdjust   = "ADJUST"    // 盘点调整
)

// Part 备件
type Part struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	PartNumber  string    `json:"part_number" gorm:"size:64;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	Description string    `json:"description" gorm:"type:text"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(12,2);not null;default:0"`
	StockQty    int       `json:"stock_qty" gorm:"not null;default:0"`
	MinStockQty int       `json:"min_stock_qty" gorm:"not null;default:0"`
	Location    string    `json:"location" gorm:"size:100"`
	Active      bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Part) TableName() string {
	return "repair_parts"
}

// IsLowStock 库存是否达到或低于预警值
func (p Part) IsLowStock() bool {
	return p.StockQty <= p.MinStockQty
}

// PartTransaction 备件库存流水
type PartTransaction struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	PartID        string    `json:"part_id" gorm:"size:36;not null;index"`
	Type          string    `json:"type" gorm:"size:20;not null"`
	Quantity      int       `json:"quantity" gorm:"not null"` // 正=入，负=出
	BalanceAfter  int       `json:"balance_after" gorm:"not null"`
	ReferenceType string    `json:"reference_type" gorm:"size:20"` // JOB
	ReferenceID   string    `json:"reference_id" gorm:"size:36"`
	Notes         string    `json:"notes" gorm:"size:500"`
	CreatedBy     string    `json:"created_by" gorm:"size:36"`
	CreatedAt     time.Time `json:"created_at"`
}

func (PartTransaction) TableName() string {
	return "repair_part_transactions"
}
