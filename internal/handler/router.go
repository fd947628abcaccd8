package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/api/swagger"
	"github.com/noah-isme/gradestore/internal/middleware"
	"github.com/noah-isme/gradestore/internal/service"
	"github.com/noah-isme/gradestore/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradestore/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradestore/pkg/middleware/requestid"
)

// RouterDeps carries everything the admin API routes need.
type RouterDeps struct {
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Data           *service.DataService
	Exports        *service.ExportService
	LocalExports   *service.LocalExportStore
	Tokens         *service.TokenService
	Metrics        *service.MetricsService
	// Docs serves the OpenAPI document and its UI under /docs.
	Docs bool
}

// NewRouter builds the gin engine serving the admin API.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	metricsHandler := NewMetricsHandler(deps.Metrics, deps.Data)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if deps.Docs {
		swagger.SwaggerInfo.BasePath = prefix
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	assignments := NewAssignmentHandler(deps.Data)
	distribution := NewDistributionHandler(deps.Data)
	blacklist := NewBlacklistHandler(deps.Data)
	cache := NewCacheHandler(deps.Data)
	exports := NewExportHandler(deps.Exports, deps.LocalExports)
	tokens := NewTokenHandler(deps.Data, deps.Tokens)

	api := r.Group(prefix)
	api.GET("/exports/:token", exports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.Tokens))
	authed.GET("/me", tokens.Me)
	authed.GET("/assignments", assignments.List)
	authed.GET("/assignments/:id", assignments.Get)
	authed.GET("/assignments/:id/groups", assignments.Groups)
	authed.GET("/parts/:id/distribution", distribution.Get)
	authed.GET("/parts/:id/grades", exports.GradeSheet)
	authed.GET("/tas/:login/blacklist", blacklist.Get)

	admin := authed.Group("")
	admin.Use(middleware.RequireAdmin())
	admin.PUT("/parts/:id/groups/:groupId/grader", distribution.AssignGrader)
	admin.POST("/tas/:login/blacklist", blacklist.Add)
	admin.DELETE("/tas/:login/blacklist", blacklist.Remove)
	admin.POST("/tas/:login/token", tokens.Issue)
	admin.POST("/cache/refresh", cache.Refresh)
	admin.GET("/parts/:id/grades/export", exports.Export)
	admin.GET("/metrics/summary", metricsHandler.Summary)

	return r
}
