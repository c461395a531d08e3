package handler

import (
	"github.com/gin-gonic/gin"
)

// Register 注册 /api/v1 下的业务路由；调用方负责挂载认证中间件
func (h *Handlers) Register(api *gin.RouterGroup) {
	// SSE 实时推送（支持 query param token）
	api.GET("/events", h.SSE.Stream)

	jobs := api.Group("/jobs")
	{
		jobs.GET("", h.Job.List)
		jobs.POST("", h.Job.Create)
		jobs.GET("/:id", h.Job.Get)
		jobs.PATCH("/:id", h.Job.Update)
		jobs.PATCH("/:id/status", h.Job.ChangeStatus)
		jobs.PATCH("/:id/resume", h.Job.Resume)
		jobs.PATCH("/:id/assign", h.Job.Assign)
		jobs.GET("/:id/records", h.Job.ListRecords)
		jobs.POST("/:id/records", h.Job.AddRecord)
		jobs.GET("/:id/parts", h.Job.ListParts)
		jobs.POST("/:id/parts", h.Job.AddPart)
		jobs.GET("/:id/history", h.Job.History)
	}

	customers := api.Group("/customers")
	{
		customers.GET("", h.Customer.List)
		customers.POST("", h.Customer.Create)
		customers.GET("/:id", h.Customer.Get)
		customers.PATCH("/:id", h.Customer.Update)
		customers.DELETE("/:id", h.Customer.Delete)
	}

	models := api.Group("/miner-models")
	{
		models.GET("", h.Catalog.ListMinerModels)
		models.POST("", h.Catalog.CreateMinerModel)
		models.PUT("/:id", h.Catalog.UpdateMinerModel)
	}

	warranties := api.Group("/warranty-profiles")
	{
		warranties.GET("", h.Catalog.ListWarrantyProfiles)
		warranties.POST("", h.Catalog.CreateWarrantyProfile)
		warranties.PUT("/:id", h.Catalog.UpdateWarrantyProfile)
	}

	parts := api.Group("/parts")
	{
		parts.GET("", h.Part.List)
		parts.POST("", h.Part.Create)
		parts.GET("/:id", h.Part.Get)
		parts.PATCH("/:id", h.Part.Update)
		parts.POST("/:id/restock", h.Part.Restock)
		parts.GET("/:id/transactions", h.Part.Ledger)
	}

	users := api.Group("/users")
	{
		users.GET("", h.User.List)
		users.GET("/me", h.User.Me)
		users.POST("", h.User.Create)
		users.PATCH("/:id", h.User.Update)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
		notifications.PATCH("/:id/read", h.Notification.MarkRead)
	}

	api.GET("/dashboard", h.Dashboard.Summary)
}
