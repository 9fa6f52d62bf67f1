package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/file-manager-api/internal/handler"
	"github.com/noah-isme/file-manager-api/internal/middleware"
	"github.com/noah-isme/file-manager-api/internal/service"
	"github.com/noah-isme/file-manager-api/pkg/config"
	"github.com/noah-isme/file-manager-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/file-manager-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/file-manager-api/pkg/middleware/requestid"
)

type routes struct {
	tokens  middleware.TokenValidator
	metrics *service.MetricsService
	auth    *handler.AuthHandler
	files   *handler.FileHandler
	bulk    *handler.BulkUploadHandler
	shares  *handler.ShareHandler
	ops     *handler.MetricsHandler
}

// newRouter registers every endpoint. Streaming routes are kept outside the
// request timeout so large transfers are not cut off.
func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.metrics))

	r.GET("/health", h.ops.Health)
	r.GET("/ready", h.ops.Ready)
	r.GET("/metrics", h.ops.Prometheus)
	r.GET("/metrics/summary", h.ops.Summary)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	bounded := middleware.Timeout(cfg.RequestTimeout)
	authed := middleware.JWT(h.tokens)

	auth := api.Group("/auth", bounded)
	auth.POST("/register", h.auth.Register)
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)
	auth.POST("/logout", authed, h.auth.Logout)
	auth.GET("/me", authed, h.auth.Me)

	files := api.Group("/files", authed)
	files.POST("/upload", middleware.Timeout(cfg.Uploads.Timeout), h.files.Upload)
	files.POST("/bulk-upload", middleware.Timeout(cfg.Uploads.Timeout), h.bulk.Submit)
	files.GET("/bulk-upload/:id", bounded, h.bulk.Status)
	files.POST("/bulk-delete", bounded, h.files.BulkDelete)
	files.GET("/stats", bounded, h.files.Stats)
	files.GET("/stats/export", bounded, h.files.ExportStats)
	files.GET("", bounded, h.files.List)
	files.GET("/:id", bounded, h.files.Get)
	files.PATCH("/:id", bounded, h.files.Update)
	files.DELETE("/:id", bounded, h.files.Delete)
	files.GET("/:id/download", h.files.Download)
	files.GET("/:id/preview", h.files.Preview)

	if h.shares != nil {
		files.POST("/:id/shares", bounded, h.shares.Create)
		files.GET("/:id/shares", bounded, h.shares.List)
		api.DELETE("/shares/:id", authed, bounded, h.shares.Revoke)
		api.GET("/shared/:token", bounded, h.shares.Resolve)
		api.GET("/shared/:token/download", h.shares.Download)
	}

	return r
}
