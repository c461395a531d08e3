package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"go.uber.org/zap"
)

// CustomerHandler 客户处理器
type CustomerHandler struct {
	svc    *service.CustomerService
	logger *zap.Logger
}

func NewCustomerHandler(svc *service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{svc: svc, logger: logger}
}

// List 客户列表
// GET /api/v1/customers?q=xxx
func (h *CustomerHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), actorOf(c), page, pageSize, c.Query("q"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Paged(c, items, page, pageSize, total)
}

func (h *CustomerHandler) Get(c *gin.Context) {
	customer, err := h.svc.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, customer)
}

func (h *CustomerHandler) Create(c *gin.Context) {
	var req service.CreateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}
	customer, err := h.svc.Create(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, customer)
}

func (h *CustomerHandler) Update(c *gin.Context) {
	var req service.UpdateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}
	customer, err := h.svc.Update(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, customer)
}

// Delete 删除客户（名下无工单）
func (h *CustomerHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, nil)
}
