package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/notify"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobNumberAttempts = 3

// JobService 维修工单服务
type JobService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	numbers  repository.JobNumberGenerator
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewJobService(d Deps) *JobService {
	return &JobService{
		db:       d.DB,
		repos:    d.Repos,
		numbers:  d.JobNumbers,
		notifier: d.Notifier,
		clock:    d.Clock,
		logger:   d.Logger,
	}
}

// CreateJobRequest 创建工单请求
type CreateJobRequest struct {
	CustomerID         string  `json:"customer_id" validate:"required,uuid"`
	MinerModelID       string  `json:"miner_model_id" validate:"required,uuid"`
	WarrantyProfileID  *string `json:"warranty_profile_id" validate:"omitnil,uuid"`
	Priority           *int    `json:"priority" validate:"omitnil,oneof=0 1 2"`
	ProblemDescription string  `json:"problem_description" validate:"required,min=10,max=5000"`
	CustomerNotes      string  `json:"customer_notes" validate:"max=5000"`
	SerialNumber       string  `json:"serial_number" validate:"max=100"`
	DevicePassword     string  `json:"device_password" validate:"max=100"`
	EstimatedDoneDate  *string `json:"estimated_done_date" validate:"omitnil,iso8601"`
}

func (r *CreateJobRequest) Validate() error { return validation.Struct(r) }

// UpdateJobRequest 更新工单请求；warranty_profile_id 与 estimated_done_date 可显式置 null 清空
type UpdateJobRequest struct {
	CustomerID         *string                     `json:"customer_id" validate:"omitnil,uuid"`
	MinerModelID       *string                     `json:"miner_model_id" validate:"omitnil,uuid"`
	WarrantyProfileID  validation.Optional[string] `json:"warranty_profile_id" validate:"omitempty,uuid"`
	Priority           *int                        `json:"priority" validate:"omitnil,oneof=0 1 2"`
	ProblemDescription *string                     `json:"problem_description" validate:"omitnil,min=10,max=5000"`
	CustomerNotes      *string                     `json:"customer_notes" validate:"omitnil,max=5000"`
	SerialNumber       *string                     `json:"serial_number" validate:"omitnil,max=100"`
	DevicePassword     *string                     `json:"device_password" validate:"omitnil,max=100"`
	EstimatedDoneDate  validation.Optional[string] `json:"estimated_done_date" validate:"omitempty,iso8601"`
	Version            *int                        `json:"version" validate:"omitnil,gte=1"`
}

func (r *UpdateJobRequest) Validate() error { return validation.Struct(r) }

// touchesOnlyIntake 是否只修改前台可编辑字段
func (r *UpdateJobRequest) touchesOnlyIntake() bool {
	return r.CustomerID == nil && r.MinerModelID == nil && !r.WarrantyProfileID.Set && r.Priority == nil
}

// ChangeStatusRequest 状态流转请求
type ChangeStatusRequest struct {
	NewStatus string `json:"new_status" validate:"required,jobstatus"`
	Note      string `json:"note" validate:"max=500"`
	Version   *int   `json:"version" validate:"omitnil,gte=1"`
}

func (r *ChangeStatusRequest) Validate() error { return validation.Struct(r) }

// ResumeJobRequest 解除挂起请求
type ResumeJobRequest struct {
	Note    string `json:"note" validate:"max=500"`
	Version *int   `json:"version" validate:"omitnil,gte=1"`
}

func (r *ResumeJobRequest) Validate() error { return validation.Struct(r) }

// AssignTechnicianRequest 指派技术员请求
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id" validate:"required,uuid"`
	Note         string `json:"note" validate:"max=500"`
	Version      *int   `json:"version" validate:"omitnil,gte=1"`
}

func (r *AssignTechnicianRequest) Validate() error { return validation.Struct(r) }

// AddRepairRecordRequest 新增维修记录请求
type AddRepairRecordRequest struct {
	Description string `json:"description" validate:"required,min=10,max=5000"`
	Findings    string `json:"findings" validate:"max=5000"`
	Actions     string `json:"actions" validate:"max=5000"`
}

func (r *AddRepairRecordRequest) Validate() error { return validation.Struct(r) }

// AddJobPartRequest 工单领用备件请求；unit_price 缺省时取备件目录价
type AddJobPartRequest struct {
	PartID    string   `json:"part_id" validate:"required,uuid"`
	Quantity  int      `json:"quantity" validate:"gte=1"`
	UnitPrice *float64 `json:"unit_price" validate:"omitnil,gt=0"`
	Notes     string   `json:"notes" validate:"max=500"`
}

func (r *AddJobPartRequest) Validate() error { return validation.Struct(r) }

// Get 获取工单详情
func (s *JobService) Get(ctx context.Context, actor policy.Actor, id string) (*entity.Job, error) {
	job, err := s.repos.Job.FindDetail(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	if err := policy.Authorize(actor, policy.ActionViewJob, job); err != nil {
		return nil, err
	}
	return job, nil
}

// List 获取工单列表
func (s *JobService) List(ctx context.Context, actor policy.Actor, page, pageSize int, filter repository.JobFilter) ([]entity.Job, int64, error) {
	if err := policy.Authorize(actor, policy.ActionViewJob, nil); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.InvalidField("status", "is not a known job status")
	}
	return s.repos.Job.FindAll(ctx, page, pageSize, filter)
}

// Create 创建工单
func (s *JobService) Create(ctx context.Context, actor policy.Actor, req *CreateJobRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionCreateJob, nil); err != nil {
		return nil, err
	}

	customer, err := s.repos.Customer.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, notFoundOr(err, "customer", req.CustomerID)
	}
	if _, err := s.repos.MinerModel.FindByID(ctx, req.MinerModelID); err != nil {
		return nil, notFoundOr(err, "miner model", req.MinerModelID)
	}
	if req.WarrantyProfileID != nil {
		if _, err := s.repos.WarrantyProfile.FindByID(ctx, *req.WarrantyProfileID); err != nil {
			return nil, notFoundOr(err, "warranty profile", *req.WarrantyProfileID)
		}
	}

	now := s.clock.Now()
	job := &entity.Job{
		CustomerID:         req.CustomerID,
		MinerModelID:       req.MinerModelID,
		WarrantyProfileID:  req.WarrantyProfileID,
		Status:             entity.JobStatusReceived,
		Priority:           entity.PriorityNormal,
		ProblemDescription: req.ProblemDescription,
		CustomerNotes:      req.CustomerNotes,
		SerialNumber:       req.SerialNumber,
		DevicePassword:     req.DevicePassword,
		Version:            1,
		CreatedBy:          actor.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.Priority != nil {
		job.Priority = *req.Priority
	}
	if req.EstimatedDoneDate != nil {
		t, _ := validation.ParseDateTime(*req.EstimatedDoneDate)
		job.EstimatedDoneDate = &t
	}

	var lastErr error
	for attempt := 0; attempt < jobNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("generate job number: %w", err)
		}
		job.ID = ""
		job.JobNumber = number

		lastErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repos := s.repos.WithTx(tx)
			if err := repos.Job.Create(ctx, job); err != nil {
				return err
			}
			return s.logActivity(ctx, repos, job, actor, entity.ActivityCreate, "", entity.JobStatusReceived, "job received", nil)
		})
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			break
		}
		s.logger.Warn("Job number collision, retrying", zap.String("job_number", number), zap.Int("attempt", attempt+1))
	}
	if lastErr != nil {
		return nil, fmt.Errorf("create job: %w", lastErr)
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:          notify.EventJobCreated,
		JobID:         job.ID,
		JobNumber:     job.JobNumber,
		CustomerID:    customer.ID,
		CustomerEmail: customer.Email,
		UserIDs:       staffRecipients(ctx, s.repos, s.logger),
		Title:         "New repair job " + job.JobNumber,
		Message:       fmt.Sprintf("%s received a miner for repair: %s", customer.Name, job.ProblemDescription),
		OccurredAt:    now,
	})

	return s.detail(ctx, job.ID)
}

// Update 更新工单（不含状态与技术员）
func (s *JobService) Update(ctx context.Context, actor policy.Actor, id string, req *UpdateJobRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := s.repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	action := policy.ActionUpdateJob
	if req.touchesOnlyIntake() {
		action = policy.ActionUpdateJobIntake
	}
	if err := policy.Authorize(actor, action, job); err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, apperr.InvalidState("job %s is %s and can no longer be edited", job.JobNumber, job.Status)
	}
	if err := checkVersion(job, req.Version); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.CustomerID != nil && *req.CustomerID != job.CustomerID {
		if _, err := s.repos.Customer.FindByID(ctx, *req.CustomerID); err != nil {
			return nil, notFoundOr(err, "customer", *req.CustomerID)
		}
		fields["customer_id"] = *req.CustomerID
	}
	if req.MinerModelID != nil && *req.MinerModelID != job.MinerModelID {
		if _, err := s.repos.MinerModel.FindByID(ctx, *req.MinerModelID); err != nil {
			return nil, notFoundOr(err, "miner model", *req.MinerModelID)
		}
		fields["miner_model_id"] = *req.MinerModelID
	}
	switch {
	case req.WarrantyProfileID.Clears():
		fields["warranty_profile_id"] = nil
	case req.WarrantyProfileID.HasValue():
		wid := req.WarrantyProfileID.Value
		if _, err := s.repos.WarrantyProfile.FindByID(ctx, wid); err != nil {
			return nil, notFoundOr(err, "warranty profile", wid)
		}
		fields["warranty_profile_id"] = wid
	}
	if req.Priority != nil {
		fields["priority"] = *req.Priority
	}
	if req.ProblemDescription != nil {
		fields["problem_description"] = *req.ProblemDescription
	}
	if req.CustomerNotes != nil {
		fields["customer_notes"] = *req.CustomerNotes
	}
	if req.SerialNumber != nil {
		fields["serial_number"] = *req.SerialNumber
	}
	if req.DevicePassword != nil {
		fields["device_password"] = *req.DevicePassword
	}
	switch {
	case req.EstimatedDoneDate.Clears():
		fields["estimated_done_date"] = nil
	case req.EstimatedDoneDate.HasValue():
		t, _ := validation.ParseDateTime(req.EstimatedDoneDate.Value)
		fields["estimated_done_date"] = t
	}
	if len(fields) == 0 {
		return s.detail(ctx, job.ID)
	}

	changed := make([]string, 0, len(fields))
	for k := range fields {
		changed = append(changed, k)
	}
	sort.Strings(changed)

	job.UpdatedAt = s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Job.UpdateWithVersion(ctx, job, fields); err != nil {
			return err
		}
		return s.logActivity(ctx, repos, job, actor, entity.ActivityUpdate, "", "", "job details updated",
			map[string]interface{}{"fields": changed})
	})
	if err != nil {
		return nil, s.mapWriteErr(err, job)
	}
	return s.detail(ctx, job.ID)
}

// ChangeStatus 工单状态流转
func (s *JobService) ChangeStatus(ctx context.Context, actor policy.Actor, id string, req *ChangeStatusRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := s.repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	if err := policy.Authorize(actor, policy.ActionChangeStatus, job); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, job, entity.JobStatus(req.NewStatus), req.Note, req.Version)
}

// Resume 挂起工单恢复到挂起前的状态
func (s *JobService) Resume(ctx context.Context, actor policy.Actor, id string, req *ResumeJobRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := s.repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	if err := policy.Authorize(actor, policy.ActionChangeStatus, job); err != nil {
		return nil, err
	}
	target, ok := job.ResumeTarget()
	if !ok {
		return nil, apperr.InvalidState("job %s is %s, only ON_HOLD jobs can be resumed", job.JobNumber, job.Status)
	}
	return s.transition(ctx, actor, job, target, req.Note, req.Version)
}

func (s *JobService) transition(ctx context.Context, actor policy.Actor, job *entity.Job, to entity.JobStatus, note string, version *int) (*entity.Job, error) {
	if err := checkVersion(job, version); err != nil {
		return nil, err
	}
	from := job.Status
	now := s.clock.Now()
	if err := job.ApplyStatus(to, now); err != nil {
		switch {
		case errors.Is(err, entity.ErrUnknownStatus):
			return nil, apperr.InvalidField("new_status", "is not a known job status")
		default:
			return nil, apperr.InvalidState("cannot change job %s from %s to %s: %v", job.JobNumber, from, to, err)
		}
	}
	job.UpdatedAt = now

	fields := map[string]interface{}{
		"status":           job.Status,
		"hold_from_status": job.HoldFromStatus,
		"completion_date":  job.CompletionDate,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Job.UpdateWithVersion(ctx, job, fields); err != nil {
			return err
		}
		return s.logActivity(ctx, repos, job, actor, entity.ActivityStatusChange, from, to, note, nil)
	})
	if err != nil {
		return nil, s.mapWriteErr(err, job)
	}

	s.logger.Info("Job status changed",
		zap.String("job_number", job.JobNumber),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("operator_id", actor.ID),
	)
	s.emitStatusEvents(ctx, job, from, to, note)
	return s.detail(ctx, job.ID)
}

func (s *JobService) emitStatusEvents(ctx context.Context, job *entity.Job, from, to entity.JobStatus, note string) {
	var recipients []string
	if job.TechnicianID != nil && *job.TechnicianID != "" {
		recipients = []string{*job.TechnicianID}
	}
	s.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventJobStatusChanged,
		JobID:      job.ID,
		JobNumber:  job.JobNumber,
		CustomerID: job.CustomerID,
		UserIDs:    recipients,
		Title:      fmt.Sprintf("Job %s is now %s", job.JobNumber, to),
		Message:    note,
		Payload:    map[string]interface{}{"from": from, "to": to},
		OccurredAt: job.UpdatedAt,
	})
	if to != entity.JobStatusCompleted {
		return
	}

	ev := notify.Event{
		Type:       notify.EventJobCompleted,
		JobID:      job.ID,
		JobNumber:  job.JobNumber,
		CustomerID: job.CustomerID,
		Title:      "Your repair " + job.JobNumber + " is complete",
		Message:    "Your miner has been repaired and is ready for collection.",
		OccurredAt: job.UpdatedAt,
	}
	if customer, err := s.repos.Customer.FindByID(ctx, job.CustomerID); err != nil {
		s.logger.Warn("Completion notice without customer contact", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		ev.CustomerEmail = customer.Email
	}
	s.notifier.Notify(ctx, ev)
}

// AssignTechnician 指派技术员
func (s *JobService) AssignTechnician(ctx context.Context, actor policy.Actor, id string, req *AssignTechnicianRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := s.repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	if err := policy.Authorize(actor, policy.ActionAssignTechnician, job); err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, apperr.InvalidState("job %s is %s and can no longer be assigned", job.JobNumber, job.Status)
	}
	if err := checkVersion(job, req.Version); err != nil {
		return nil, err
	}

	tech, err := s.repos.User.FindByID(ctx, req.TechnicianID)
	if err != nil {
		return nil, notFoundOr(err, "technician", req.TechnicianID)
	}
	if !tech.Active || !tech.Role.CanRepair() {
		return nil, apperr.InvalidField("technician_id", "must refer to an active technician")
	}

	previous := deref(job.TechnicianID)
	content := fmt.Sprintf("assigned to %s", tech.Name)
	if previous != "" {
		content = fmt.Sprintf("reassigned from %s to %s", previous, tech.Name)
	}
	if req.Note != "" {
		content += ": " + req.Note
	}

	job.UpdatedAt = s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Job.UpdateWithVersion(ctx, job, map[string]interface{}{"technician_id": tech.ID}); err != nil {
			return err
		}
		return s.logActivity(ctx, repos, job, actor, entity.ActivityAssign, "", "", content,
			map[string]interface{}{"previous_technician_id": previous, "technician_id": tech.ID})
	})
	if err != nil {
		return nil, s.mapWriteErr(err, job)
	}
	job.TechnicianID = &tech.ID

	s.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventJobAssigned,
		JobID:      job.ID,
		JobNumber:  job.JobNumber,
		UserIDs:    []string{tech.ID},
		Title:      "Job " + job.JobNumber + " assigned to you",
		Message:    job.ProblemDescription,
		OccurredAt: job.UpdatedAt,
	})
	return s.detail(ctx, job.ID)
}

// AddRepairRecord 新增维修记录（只追加，不改变状态）
func (s *JobService) AddRepairRecord(ctx context.Context, actor policy.Actor, id string, req *AddRepairRecordRequest) (*entity.RepairRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := s.repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	if err := policy.Authorize(actor, policy.ActionAddRepairRecord, job); err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, apperr.InvalidState("job %s is %s, repair records are closed", job.JobNumber, job.Status)
	}

	record := &entity.RepairRecord{
		JobID:       job.ID,
		Description: req.Description,
		Findings:    req.Findings,
		Actions:     req.Actions,
		AuthorID:    actor.ID,
		CreatedAt:   s.clock.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Job.CreateRecord(ctx, record); err != nil {
			return err
		}
		return s.logActivity(ctx, repos, job, actor, entity.ActivityRepairRecord, "", "", req.Description,
			map[string]interface{}{"record_id": record.ID})
	})
	if err != nil {
		return nil, fmt.Errorf("add repair record: %w", err)
	}
	return record, nil
}

// AddJobPart 工单领用备件：锁定备件行、扣减库存、写领用记录与库存流水，全部在同一事务内
func (s *JobService) AddJobPart(ctx context.Context, actor policy.Actor, id string, req *AddJobPartRequest) (*entity.JobPart, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := s.repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	if err := policy.Authorize(actor, policy.ActionAddPart, job); err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, apperr.InvalidState("job %s is %s, parts can no longer be added", job.JobNumber, job.Status)
	}

	now := s.clock.Now()
	var usage *entity.JobPart
	var part *entity.Part
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		p, err := repos.Part.LockByID(ctx, req.PartID)
		if err != nil {
			return notFoundOr(err, "part", req.PartID)
		}
		if !p.Active {
			return apperr.InvalidState("part %s is inactive", p.PartNumber)
		}
		if p.StockQty < req.Quantity {
			return apperr.InsufficientStock(p.ID, req.Quantity, p.StockQty)
		}
		if err := repos.Part.DecrementStock(ctx, p.ID, req.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficient) {
				return apperr.InsufficientStock(p.ID, req.Quantity, p.StockQty)
			}
			return err
		}
		p.StockQty -= req.Quantity

		price := p.UnitPrice
		if req.UnitPrice != nil {
			price = *req.UnitPrice
		}
		usage = &entity.JobPart{
			JobID:     job.ID,
			PartID:    p.ID,
			Quantity:  req.Quantity,
			UnitPrice: price,
			Notes:     req.Notes,
			CreatedBy: actor.ID,
			CreatedAt: now,
		}
		if err := repos.Job.CreatePart(ctx, usage); err != nil {
			return err
		}
		if err := repos.Part.CreateTransaction(ctx, &entity.PartTransaction{
			PartID:        p.ID,
			Type:          entity.PartTxJobUsage,
			Quantity:      -req.Quantity,
			BalanceAfter:  p.StockQty,
			ReferenceType: "JOB",
			ReferenceID:   job.ID,
			Notes:         job.JobNumber,
			CreatedBy:     actor.ID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		part = p
		return s.logActivity(ctx, repos, job, actor, entity.ActivityPartUsage, "", "",
			fmt.Sprintf("used %d x %s", req.Quantity, p.PartNumber),
			map[string]interface{}{
				"part_id":     p.ID,
				"part_number": p.PartNumber,
				"quantity":    req.Quantity,
				"unit_price":  price,
			})
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("add job part: %w", err)
	}

	usage.Part = part
	if part.IsLowStock() {
		s.notifier.Notify(ctx, lowStockEvent(part, staffRecipients(ctx, s.repos, s.logger), now))
	}
	return usage, nil
}

// ListRecords 工单维修记录
func (s *JobService) ListRecords(ctx context.Context, actor policy.Actor, id string) ([]entity.RepairRecord, error) {
	if _, err := s.viewable(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repos.Job.FindRecords(ctx, id)
}

// ListParts 工单备件使用明细
func (s *JobService) ListParts(ctx context.Context, actor policy.Actor, id string) ([]entity.JobPart, error) {
	if _, err := s.viewable(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repos.Job.FindParts(ctx, id)
}

// ListActivities 工单操作日志
func (s *JobService) ListActivities(ctx context.Context, actor policy.Actor, id string) ([]entity.JobActivity, error) {
	if _, err := s.viewable(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repos.Activity.FindByJob(ctx, id)
}

// NotifyOverdue 通知超过预计完成时间的工单，返回工单数
func (s *JobService) NotifyOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	jobs, err := s.repos.Job.FindOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find overdue jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	staff := staffRecipients(ctx, s.repos, s.logger)
	for _, job := range jobs {
		recipients := append([]string{}, staff...)
		if job.TechnicianID != nil {
			recipients = append(recipients, *job.TechnicianID)
		}
		s.notifier.Notify(ctx, notify.Event{
			Type:       notify.EventJobOverdue,
			JobID:      job.ID,
			JobNumber:  job.JobNumber,
			CustomerID: job.CustomerID,
			UserIDs:    recipients,
			Title:      "Job " + job.JobNumber + " is overdue",
			Message:    fmt.Sprintf("Estimated completion was %s, current status %s", job.EstimatedDoneDate.Format(time.DateOnly), job.Status),
			OccurredAt: now,
		})
	}
	return len(jobs), nil
}

func (s *JobService) viewable(ctx context.Context, actor policy.Actor, id string) (*entity.Job, error) {
	job, err := s.repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	if err := policy.Authorize(actor, policy.ActionViewJob, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) detail(ctx context.Context, id string) (*entity.Job, error) {
	job, err := s.repos.Job.FindDetail(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "job", id)
	}
	return job, nil
}

func (s *JobService) logActivity(ctx context.Context, repos *repository.Repositories, job *entity.Job, actor policy.Actor,
	action string, from, to entity.JobStatus, content string, meta map[string]interface{}) error {
	return repos.Activity.Create(ctx, &entity.JobActivity{
		JobID:        job.ID,
		Action:       action,
		FromStatus:   from,
		ToStatus:     to,
		Content:      content,
		Metadata:     meta,
		OperatorID:   actor.ID,
		OperatorRole: actor.Role,
		CreatedAt:    s.clock.Now(),
	})
}

func (s *JobService) mapWriteErr(err error, job *entity.Job) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperr.Conflict("job %s was modified by another request, reload and retry", job.JobNumber)
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return fmt.Errorf("update job %s: %w", job.JobNumber, err)
}

// checkVersion 调用方携带的版本号须与当前一致
func checkVersion(job *entity.Job, expected *int) error {
	if expected != nil && *expected != job.Version {
		return apperr.Conflict("job %s is at version %d, request was based on version %d", job.JobNumber, job.Version, *expected)
	}
	return nil
}

func lowStockEvent(part *entity.Part, recipients []string, now time.Time) notify.Event {
	return notify.Event{
		Type:    notify.EventLowStock,
		PartID:  part.ID,
		UserIDs: recipients,
		Title:   "Low stock: " + part.PartNumber,
		Message: fmt.Sprintf("%s has %d left (minimum %d)", part.Name, part.StockQty, part.MinStockQty),
		Payload: map[string]interface{}{
			"part_number":   part.PartNumber,
			"stock_qty":     part.StockQty,
			"min_stock_qty": part.MinStockQty,
		},
		OccurredAt: now,
	}
}
