package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"gorm.io/gorm"
)

// JobFilter 工单列表筛选条件
type JobFilter struct {
	Status       entity.JobStatus
	TechnicianID string
	CustomerID   string
	Priority     *int
	Keyword      string
	OpenOnly     bool
}

// JobRepository 工单仓库
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create 创建工单
func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	if job.ID == "" {
		job.ID = newID()
	}
	if job.Version == 0 {
		job.Version = 1
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// FindByID 查询工单（不含关联）
func (r *JobRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	var job entity.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// FindDetail 查询工单详情（含客户、型号、技术员、维修记录、备件）
func (r *JobRepository) FindDetail(ctx context.Context, id string) (*entity.Job, error) {
	var job entity.Job
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("MinerModel").
		Preload("Technician").
		Preload("WarrantyProfile").
		Preload("RepairRecords", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("RepairRecords.Author").
		Preload("Parts", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Parts.Part").
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// FindAll 查询工单列表
func (r *JobRepository) FindAll(ctx context.Context, page, pageSize int, f JobFilter) ([]entity.Job, int64, error) {
	var items []entity.Job
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Job{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.OpenOnly {
		query = query.Where("status NOT IN ?", []entity.JobStatus{entity.JobStatusCompleted, entity.JobStatusCancelled})
	}
	if f.TechnicianID != "" {
		query = query.Where("technician_id = ?", f.TechnicianID)
	}
	if f.CustomerID != "" {
		query = query.Where("customer_id = ?", f.CustomerID)
	}
	if f.Priority != nil {
		query = query.Where("priority = ?", *f.Priority)
	}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		query = query.Where("LOWER(job_number) LIKE ? OR LOWER(serial_number) LIKE ? OR LOWER(problem_description) LIKE ?",
			likePattern(kw), likePattern(kw), likePattern(kw))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 列表不返回设备密码，仅详情可见
	err := query.
		Omit("device_password").
		Preload("Customer").
		Preload("MinerModel").
		Preload("Technician").
		Order("priority DESC, created_at DESC").
		Offset(offsetOf(page, pageSize)).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// UpdateWithVersion 乐观锁更新：仅当版本号未变时写入，成功后 job.Version 自增
func (r *JobRepository) UpdateWithVersion(ctx context.Context, job *entity.Job, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = job.UpdatedAt
	result := r.db.WithContext(ctx).
		Model(&entity.Job{}).
		Where("id = ? AND version = ?", job.ID, job.Version).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	job.Version++
	return nil
}

// CountByCustomer 客户名下工单数
func (r *JobRepository) CountByCustomer(ctx context.Context, customerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Job{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}

// StatusCount 状态统计行
type StatusCount struct {
	Status entity.JobStatus `json:"status"`
	Count  int64            `json:"count"`
}

// CountByStatus 按状态统计工单
func (r *JobRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&entity.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// TechnicianLoad 技术员在修工单数
type TechnicianLoad struct {
	TechnicianID string `json:"technician_id"`
	Name         string `json:"name"`
	OpenJobs     int64  `json:"open_jobs"`
}

// CountOpenByTechnician 按技术员统计未完结工单
func (r *JobRepository) CountOpenByTechnician(ctx context.Context) ([]TechnicianLoad, error) {
	var rows []TechnicianLoad
	err := r.db.WithContext(ctx).
		Table("repair_jobs AS j").
		Select("j.technician_id AS technician_id, u.name AS name, COUNT(*) AS open_jobs").
		Joins("JOIN repair_users u ON u.id = j.technician_id").
		Where("j.status NOT IN ?", []entity.JobStatus{entity.JobStatusCompleted, entity.JobStatusCancelled}).
		Group("j.technician_id, u.name").
		Order("open_jobs DESC").
		Scan(&rows).Error
	return rows, err
}

// FindOverdue 已过预计完成时间且未完结的工单
func (r *JobRepository) FindOverdue(ctx context.Context, now time.Time) ([]entity.Job, error) {
	var items []entity.Job
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("estimated_done_date IS NOT NULL AND estimated_done_date < ?", now).
		Where("status NOT IN ?", []entity.JobStatus{entity.JobStatusCompleted, entity.JobStatusCancelled, entity.JobStatusReadyForPickup}).
		Order("estimated_done_date ASC").
		Find(&items).Error
	return items, err
}

// MaxJobNumber 指定前缀下序号最大的工单号（序号超过4位时按长度比较）
func (r *JobRepository) MaxJobNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&entity.Job{}).
		Where("job_number LIKE ?", prefix+"%").
		Order("LENGTH(job_number) DESC, job_number DESC").
		Limit(1).
		Pluck("job_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}

// CreateRecord 新增维修记录
func (r *JobRepository) CreateRecord(ctx context.Context, rec *entity.RepairRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindRecords 工单维修记录（按时间正序）
func (r *JobRepository) FindRecords(ctx context.Context, jobID string) ([]entity.RepairRecord, error) {
	var items []entity.RepairRecord
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// CreatePart 新增工单备件使用
func (r *JobRepository) CreatePart(ctx context.Context, jp *entity.JobPart) error {
	if jp.ID == "" {
		jp.ID = newID()
	}
	return r.db.WithContext(ctx).Create(jp).Error
}

// FindParts 工单备件使用明细
func (r *JobRepository) FindParts(ctx context.Context, jobID string) ([]entity.JobPart, error) {
	var items []entity.JobPart
	err := r.db.WithContext(ctx).
		Preload("Part").
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
