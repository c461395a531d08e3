package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 工单操作类型
const (
	ActivityCreate       = "create"
	ActivityUpdate       = "update"
	ActivityStatusChange = "status_change"
	ActivityAssign       = "assign"
	ActivityRepairRecord = "repair_record"
	ActivityPartUsage    = "part_usage"
)

// JobActivity 工单操作日志（只追加）
type JobActivity struct {
	ID           string            `json:"id" gorm:"primaryKey;size:36"`
	JobID        string            `json:"job_id" gorm:"size:36;not null;index:idx_job_activity"`
	Action       string            `json:"action" gorm:"size:32;not null"`
	FromStatus   JobStatus         `json:"from_status,omitempty" gorm:"size:20"`
	ToStatus     JobStatus         `json:"to_status,omitempty" gorm:"size:20"`
	Content      string            `json:"content" gorm:"type:text"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	OperatorID   string            `json:"operator_id" gorm:"size:36"`
	OperatorRole Role              `json:"operator_role" gorm:"size:20"`
	CreatedAt    time.Time         `json:"created_at" gorm:"index:idx_job_activity"`
}

func (JobActivity) TableName() string {
	return "repair_job_activities"
}

// Notification 站内通知
type Notification struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	UserID     *string    `json:"user_id" gorm:"size:36;index"`
	CustomerID *string    `json:"customer_id" gorm:"size:36;index"`
	Type       string     `json:"type" gorm:"size:32;not null"` // notify.Event 类型
	Title      string     `json:"title" gorm:"size:200;not null"`
	Body       string     `json:"body" gorm:"type:text"`
	JobID      string     `json:"job_id,omitempty" gorm:"size:36"`
	PartID     string     `json:"part_id,omitempty" gorm:"size:36"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Notification) TableName() string {
	return "repair_notifications"
}
