package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"go.uber.org/zap"
)

// ============================================================
// User Handler
// ============================================================

type UserHandler struct {
	svc    *service.UserService
	logger *zap.Logger
}

func NewUserHandler(svc *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// List 用户列表
// GET /api/v1/users?role=TECHNICIAN&active_only=true
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context(), actorOf(c), c.Query("role"), queryBool(c, "active_only", false))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": users})
}

// Me 当前用户
// GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), actorOf(c))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, u)
}

func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.Create(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, u)
}

func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.Update(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, u)
}

// ============================================================
// Notification Handler
// ============================================================

type NotificationHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// List 我的通知
// GET /api/v1/notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), actorOf(c), queryBool(c, "unread", false), page, pageSize)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Paged(c, items, page, pageSize, total)
}

// MarkRead 标记已读
// PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, nil)
}

// ============================================================
// Dashboard Handler
// ============================================================

type DashboardHandler struct {
	svc    *service.DashboardService
	logger *zap.Logger
}

func NewDashboardHandler(svc *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger}
}

// Summary GET /api/v1/dashboard
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context(), actorOf(c))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, summary)
}
