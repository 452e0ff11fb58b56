package router

import (
	"context"

	"prosterio-go/internal/api/handler"
	"prosterio-go/internal/api/middleware"
	"prosterio-go/internal/auth"
	"prosterio-go/internal/processor"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Auth      *handler.AuthHandler
	Employees *handler.EmployeeHandler
	Documents *handler.DocumentHandler
	Insights  *handler.InsightHandler
	Records   *handler.RecordHandler
}

// RegisterRoutes 注册 API 路由。tokens 为 nil 时不挂认证中间件，仅用于测试。
func RegisterRoutes(h *server.Hertz, tokens *auth.TokenManager, hs Handlers) {
	h.Use(middleware.AccessLog())
	if tokens != nil {
		h.Use(auth.Middleware(tokens))
	}

	health := func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "ok"})
	}
	h.GET("/", health)
	h.GET("/health", health)
	h.GET("/pdfs/*key", hs.Documents.ServePDF)

	api := h.Group("/api")

	api.POST("/login", hs.Auth.Login)
	api.POST("/users", hs.Auth.CreateUser)
	api.POST("/forgot-password/request", hs.Auth.RequestPasswordReset)
	api.POST("/forgot-password/verify", hs.Auth.VerifyPasswordReset)

	employees := api.Group("/employees")
	employees.POST("", hs.Employees.BulkUpsert)
	employees.GET("", hs.Employees.List)
	employees.GET("/export", hs.Employees.Export)
	employees.GET("/:id", hs.Employees.Get)
	employees.PUT("/:id", hs.Employees.Update)
	employees.PATCH("/:id/resign", hs.Employees.Resign)
	employees.DELETE("/:id", hs.Employees.Delete)

	api.POST("/documents", hs.Documents.Extract)
	api.POST("/gdrive", hs.Documents.UploadToDrive)

	api.GET("/analytics", hs.Insights.Analytics)
	api.POST("/rag", hs.Insights.RAG)

	r := hs.Records
	api.GET("/chats", r.List(processor.KindChat, "chats"))
	api.POST("/chats", r.Create(processor.KindChat, "Chat created"))
	api.GET("/chats/:id", r.Get(processor.KindChat, "chat"))
	api.GET("/clients", r.List(processor.KindClient, "clients"))
	api.POST("/clients", r.Create(processor.KindClient, "Client created"))
	api.POST("/companies", r.Create(processor.KindCompany, "Company created"))
	api.POST("/projects", r.Create(processor.KindProject, "Project created"))
	api.POST("/interviews", r.Create(processor.KindInterview, "Interview created"))
	api.PUT("/interviews/:id", r.Update(processor.KindInterview, "Interview updated"))
	api.POST("/prompt", r.Create(processor.KindPrompt, "Prompt received"))
}
