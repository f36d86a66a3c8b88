package api

import (
	"github.com/fyerfyer/rag-indexer/api/handler"
	"github.com/fyerfyer/rag-indexer/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	blobHandler *handler.BlobHandler,
	runHandler *handler.RunHandler,
	healthHandler *handler.HealthHandler,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	api := router.Group("/api")
	{
		// 对象存储API
		blobGroup := api.Group("/blobs")
		{
			// 列出对象 - GET /api/blobs?prefix=
			blobGroup.GET("", blobHandler.ListBlobs)

			// 上传对象并触发索引 - POST /api/blobs
			blobGroup.POST("", blobHandler.UploadBlob)
		}

		// 索引运行记录API
		runGroup := api.Group("/runs")
		{
			// 运行记录列表 - GET /api/runs
			runGroup.GET("", runHandler.ListRuns)

			// 运行记录详情 - GET /api/runs/:id
			runGroup.GET("/:id", runHandler.GetRun)
		}

		// 健康检查 - GET /api/health
		api.GET("/health", healthHandler.Health)
	}

	return router
}
