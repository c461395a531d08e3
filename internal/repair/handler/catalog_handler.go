package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/repository"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"go.uber.org/zap"
)

// ============================================================
// Miner models & warranty profiles
// ============================================================

type CatalogHandler struct {
	svc    *service.CatalogService
	logger *zap.Logger
}

func NewCatalogHandler(svc *service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, logger: logger}
}

// ListMinerModels GET /api/v1/miner-models?active_only=true
func (h *CatalogHandler) ListMinerModels(c *gin.Context) {
	items, err := h.svc.ListMinerModels(c.Request.Context(), actorOf(c), queryBool(c, "active_only", false))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

func (h *CatalogHandler) CreateMinerModel(c *gin.Context) {
	var req service.MinerModelRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.svc.CreateMinerModel(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, m)
}

func (h *CatalogHandler) UpdateMinerModel(c *gin.Context) {
	var req service.MinerModelRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.svc.UpdateMinerModel(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, m)
}

// ListWarrantyProfiles GET /api/v1/warranty-profiles?active_only=true
func (h *CatalogHandler) ListWarrantyProfiles(c *gin.Context) {
	items, err := h.svc.ListWarrantyProfiles(c.Request.Context(), actorOf(c), queryBool(c, "active_only", false))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

func (h *CatalogHandler) CreateWarrantyProfile(c *gin.Context) {
	var req service.WarrantyProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.CreateWarrantyProfile(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, p)
}

func (h *CatalogHandler) UpdateWarrantyProfile(c *gin.Context) {
	var req service.WarrantyProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.UpdateWarrantyProfile(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, p)
}

// ============================================================
// Parts
// ============================================================

type PartHandler struct {
	svc    *service.PartService
	logger *zap.Logger
}

func NewPartHandler(svc *service.PartService, logger *zap.Logger) *PartHandler {
	return &PartHandler{svc: svc, logger: logger}
}

// List 备件列表
// GET /api/v1/parts?q=&low_stock=true&active_only=true
func (h *PartHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := repository.PartFilter{
		Keyword:    c.Query("q"),
		LowStock:   queryBool(c, "low_stock", false),
		ActiveOnly: queryBool(c, "active_only", false),
	}
	items, total, err := h.svc.List(c.Request.Context(), actorOf(c), page, pageSize, filter)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Paged(c, items, page, pageSize, total)
}

func (h *PartHandler) Get(c *gin.Context) {
	part, err := h.svc.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, part)
}

func (h *PartHandler) Create(c *gin.Context) {
	var req service.CreatePartRequest
	if !bindJSON(c, &req) {
		return
	}
	part, err := h.svc.Create(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Created(c, part)
}

func (h *PartHandler) Update(c *gin.Context) {
	var req service.UpdatePartRequest
	if !bindJSON(c, &req) {
		return
	}
	part, err := h.svc.Update(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, part)
}

// Restock 补货
// POST /api/v1/parts/:id/restock
func (h *PartHandler) Restock(c *gin.Context) {
	var req service.RestockRequest
	if !bindJSON(c, &req) {
		return
	}
	part, err := h.svc.Restock(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Success(c, part)
}

// Ledger 库存流水
// GET /api/v1/parts/:id/transactions
func (h *PartHandler) Ledger(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.Ledger(c.Request.Context(), actorOf(c), c.Param("id"), page, pageSize)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	Paged(c, items, page, pageSize, total)
}
