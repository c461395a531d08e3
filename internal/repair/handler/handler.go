package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/middleware"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/policy"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/service"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/sse"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/validation"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Job          *JobHandler
	Customer     *CustomerHandler
	Catalog      *CatalogHandler
	Part         *PartHandler
	User         *UserHandler
	Notification *NotificationHandler
	Dashboard    *DashboardHandler
	SSE          *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, logger *zap.Logger) *Handlers {
	return &Handlers{
		Job:          NewJobHandler(svc.Job, logger),
		Customer:     NewCustomerHandler(svc.Customer, logger),
		Catalog:      NewCatalogHandler(svc.Catalog, logger),
		Part:         NewPartHandler(svc.Part, logger),
		User:         NewUserHandler(svc.User, logger),
		Notification: NewNotificationHandler(svc.Notification, logger),
		Dashboard:    NewDashboardHandler(svc.Dashboard, logger),
		SSE:          NewSSEHandler(hub),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Kind    apperr.Kind            `json:"kind,omitempty"`
	Fields  []apperr.FieldError    `json:"fields,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Paged 分页列表响应
func Paged(c *gin.Context, items interface{}, page, pageSize int, total int64) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// Fail 将服务层错误写成响应；未分类的错误记录日志并返回 500
func Fail(c *gin.Context, logger *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, Response{
			Code:    apperr.CodeInternal,
			Message: "internal server error",
			Kind:    apperr.KindInternal,
		})
		return
	}
	c.JSON(e.Status(), Response{
		Code:    e.Code,
		Message: e.Message,
		Kind:    e.Kind,
		Fields:  e.Fields,
		Details: e.Details,
	})
}

// bindJSON 解析请求体，格式错误时写 400 并返回 false；空请求体交给字段校验
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		Fail(c, zap.NewNop(), validation.FromBindError(err))
		return false
	}
	return true
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.KeyUserID)
}

// actorOf 从 JWT 上下文构造调用者
func actorOf(c *gin.Context) policy.Actor {
	return policy.Actor{
		ID:   c.GetString(middleware.KeyUserID),
		Name: c.GetString(middleware.KeyUserName),
		Role: entity.Role(c.GetString(middleware.KeyUserRole)),
	}
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// queryBool 解析布尔查询参数，缺省为 def
func queryBool(c *gin.Context, key string, def bool) bool {
	v := c.Query(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
