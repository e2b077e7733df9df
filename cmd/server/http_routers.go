package main

import (
	"net/http"

	"notify-gateway/internal/httpapi"

	"github.com/gin-gonic/gin"
)

//
// 中间件
//

// corsMiddleware 跨域资源共享中间件
// 允许所有来源访问,便于前端开发和集成
// 生产环境建议根据需求配置白名单
func corsMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if context.Request.Method == "OPTIONS" {
			context.AbortWithStatus(http.StatusNoContent)
			return
		}

		context.Next()
	}
}

//
// 路由构建主函数
//

// BuildGinRouter 构建 Gin 路由器
// 集中管理所有 HTTP 路由
func BuildGinRouter(app *AppContext) *gin.Engine {
	router := gin.Default()

	// 应用全局中间件
	router.Use(corsMiddleware())

	// 健康检查
	router.GET("/healthz", handleHealthCheck(app))

	// API v1 路由组
	apiV1 := router.Group("/v1")
	{
		registerNotificationRoutes(apiV1, app)
		registerLogRoutes(apiV1, app)
		registerInboxRoutes(apiV1, app)
	}

	return router
}

// handleHealthCheck 健康检查处理
func handleHealthCheck(app *AppContext) gin.HandlerFunc {
	return func(context *gin.Context) {
		context.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"mode":   string(app.Mode),
		})
	}
}

// registerNotificationRoutes 注册通知发送路由
func registerNotificationRoutes(group *gin.RouterGroup, app *AppContext) {
	group.POST("/notifications", gin.WrapH(httpapi.NewSendHandler(app.Service)))
	group.POST("/notifications/async", gin.WrapH(httpapi.NewAsyncSendHandler(app.Service)))
}

// registerLogRoutes 注册审计日志与回执路由
func registerLogRoutes(group *gin.RouterGroup, app *AppContext) {
	group.GET("/notification-logs", gin.WrapH(httpapi.NewLogsHandler(app.LogStore)))
	group.POST("/notification-receipts", gin.WrapH(httpapi.NewReceiptsHandler(app.LogStore)))
}

// registerInboxRoutes 注册收件箱路由
func registerInboxRoutes(group *gin.RouterGroup, app *AppContext) {
	inboxHandler := httpapi.NewInboxHandler(app.InboxStore)

	group.GET("/inbox", gin.WrapF(inboxHandler.HandleQuery))
	group.POST("/inbox/read", gin.WrapF(inboxHandler.HandleMarkRead))
}
