package entity

import (
	"time"
)

// 优先级
const (
	PriorityNormal   = 0
	PriorityUrgent   = 1
	PriorityCritical = 2
)

// Job 维修工单
type Job struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:36"`
	JobNumber          string     `json:"job_number" gorm:"size:32;not null;uniqueIndex"`
	CustomerID         string     `json:"customer_id" gorm:"size:36;not null;index"`
	MinerModelID       string     `json:"miner_model_id" gorm:"size:36;not null;index"`
	TechnicianID       *string    `json:"technician_id" gorm:"size:36;index"`
	WarrantyProfileID  *string    `json:"warranty_profile_id" gorm:"size:36"`
	Status             JobStatus  `json:"status" gorm:"size:20;not null;default:RECEIVED;index"`
	HoldFromStatus     JobStatus  `json:"hold_from_status,omitempty" gorm:"size:20"`
	Priority           int        `json:"priority" gorm:"not null;default:0"`
	ProblemDescription string     `json:"problem_description" gorm:"type:text;not null"`
	CustomerNotes      string     `json:"customer_notes" gorm:"type:text"`
	SerialNumber       string     `json:"serial_number" gorm:"size:100;index"`
	DevicePassword     string     `json:"device_password,omitempty" gorm:"size:100"`
	EstimatedDoneDate  *time.Time `json:"estimated_done_date"`
	CompletionDate     *time.Time `json:"completion_date"`
	Version            int        `json:"version" gorm:"not null;default:1"`
	CreatedBy          string     `json:"created_by" gorm:"size:36"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Customer        *Customer        `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	MinerModel      *MinerModel      `json:"miner_model,omitempty" gorm:"foreignKey:MinerModelID"`
	Technician      *User            `json:"technician,omitempty" gorm:"foreignKey:TechnicianID"`
	WarrantyProfile *WarrantyProfile `json:"warranty_profile,omitempty" gorm:"foreignKey:WarrantyProfileID"`
	RepairRecords   []RepairRecord   `json:"repair_records,omitempty" gorm:"foreignKey:JobID"`
	Parts           []JobPart        `json:"parts,omitempty" gorm:"foreignKey:JobID"`
}

func (Job) TableName() string {
	return "repair_jobs"
}

// IsAssignedTo 是否指派给该技术员
func (j *Job) IsAssignedTo(userID string) bool {
	return j.TechnicianID != nil && *j.TechnicianID == userID
}

// RepairRecord 维修记录，创建后不可修改
type RepairRecord struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	JobID       string    `json:"job_id" gorm:"size:36;not null;index"`
	Description string    `json:"description" gorm:"type:text;not null"`
	Findings    string    `json:"findings" gorm:"type:text"`
	Actions     string    `json:"actions" gorm:"type:text"`
	AuthorID    string    `json:"author_id" gorm:"size:36;not null"`
	CreatedAt   time.Time `json:"created_at"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}

func (RepairRecord) TableName() string {
	return "repair_records"
}

// JobPart 工单备件使用记录
type JobPart struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	JobID     string    `json:"job_id" gorm:"size:36;not null;index"`
	PartID    string    `json:"part_id" gorm:"size:36;not null;index"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	UnitPrice float64   `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Notes     string    `json:"notes" gorm:"size:500"`
	CreatedBy string    `json:"created_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`

	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}

func (JobPart) TableName() string {
	return "repair_job_parts"
}

// LineTotal 行金额
func (p JobPart) LineTotal() float64 {
	return float64(p.Quantity) * p.UnitPrice
}
