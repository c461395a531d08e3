package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"go.uber.org/zap"
)

// JobHandler 维修工单处理器
type JobHandler struct {
	svc    *service.JobService
	logger *zap.Logger
}

func NewJobHandler(svc *service.JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{svc: svc, logger: logger}
}

// List 工单列表
// GET /api/v1/jobs?status=&technician_id=&customer_id=&priority=&q=&open_only=
func (h *JobHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := repository.JobFilter{
		Status:       entity.JobStatus(c.Query("status")),
		TechnicianID: c.Query("technician_id"),
		CustomerID:   c.Query("customer_id"),
		Keyword:      c.Query("q"),
		OpenOnly:     queryBool(c, "open_only", false),
	}
	if p := c.Query("priority"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			Fail(c, h.logger, apperr.InvalidField("priority", "must be an integer"))
			return
		}
		filter.Priority = &v
	}

	jobs, total, err := h.svc.List(c.Request.Context(), actorOf(c), page, pageSize, filter)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Paged(c, jobs, page, pageSize, total)
}

// Get 工单详情
// GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.svc.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, job)
}

// Create 创建工单
// POST /api/v1/jobs
func (h *JobHandler) Create(c *gin.Context) {
	var req service.CreateJobRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.svc.Create(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, job)
}

// Update 更新工单
// PATCH /api/v1/jobs/:id
func (h *JobHandler) Update(c *gin.Context) {
	var req service.UpdateJobRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.svc.Update(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, job)
}

// ChangeStatus 状态流转
// PATCH /api/v1/jobs/:id/status
func (h *JobHandler) ChangeStatus(c *gin.Context) {
	var req service.ChangeStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.svc.ChangeStatus(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, job)
}

// Resume 解除挂起
// PATCH /api/v1/jobs/:id/resume
func (h *JobHandler) Resume(c *gin.Context) {
	var req service.ResumeJobRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.svc.Resume(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, job)
}

// Assign 指派技术员
// PATCH /api/v1/jobs/:id/assign
func (h *JobHandler) Assign(c *gin.Context) {
	var req service.AssignTechnicianRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.svc.AssignTechnician(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, job)
}

// AddRecord 新增维修记录
// POST /api/v1/jobs/:id/records
func (h *JobHandler) AddRecord(c *gin.Context) {
	var req service.AddRepairRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.svc.AddRepairRecord(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, record)
}

// ListRecords 维修记录
// GET /api/v1/jobs/:id/records
func (h *JobHandler) ListRecords(c *gin.Context) {
	records, err := h.svc.ListRecords(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": records})
}

// AddPart 领用备件
// POST /api/v1/jobs/:id/parts
func (h *JobHandler) AddPart(c *gin.Context) {
	var req service.AddJobPartRequest
	if !bindJSON(c, &req) {
		return
	}
	usage, err := h.svc.AddJobPart(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, gin.H{
		"id":         usage.ID,
		"job_id":     usage.JobID,
		"part_id":    usage.PartID,
		"quantity":   usage.Quantity,
		"unit_price": usage.UnitPrice,
		"line_total": usage.LineTotal(),
		"notes":      usage.Notes,
		"created_by": usage.CreatedBy,
		"created_at": usage.CreatedAt,
		"part":       usage.Part,
	})
}

// ListParts 备件使用明细
// GET /api/v1/jobs/:id/parts
func (h *JobHandler) ListParts(c *gin.Context) {
	parts, err := h.svc.ListParts(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	var total float64
	for _, p := range parts {
		total += p.LineTotal()
	}
	Success(c, gin.H{"items": parts, "parts_total": total})
}

// History 操作日志
// GET /api/v1/jobs/:id/history
func (h *JobHandler) History(c *gin.Context) {
	activities, err := h.svc.ListActivities(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": activities})
}
