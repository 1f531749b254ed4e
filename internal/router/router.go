package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/scisign/config"
	"github.com/weiwangfds/scisign/internal/handler"
	"github.com/weiwangfds/scisign/internal/middleware"
	"gorm.io/gorm"
)

// 请求体上限 = 签名数据上限 * 签名个数 + 其余字段的余量
const (
	submitBodySignatures = 4
	bodyOverhead         = 64 << 10
)

// Router 路由配置
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// NewRouter 创建路由实例
func NewRouter(cfg *config.Config, db *gorm.DB, svc *Services, logger logrus.FieldLogger) *Router {
	// 设置Gin模式
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	engine := gin.New()
	r := &Router{engine: engine, db: db}

	// 初始化处理器
	signatureHandler := handler.NewSignatureHandler(svc.Images, svc.URLs.QueryVar(), cfg.Signature.LoginURL, logger)
	// 重签只带一个签名，匿名提交可能包含多个签名字段
	payload := int64(cfg.Signature.MaxPayloadBytes)
	formHandler := handler.NewFormHandler(svc.Entries, svc.Capture, submitBodySignatures*payload+bodyOverhead)
	entryHandler := handler.NewEntryHandler(svc.Entries, svc.Capture, svc.URLs, payload+bodyOverhead)
	authHandler := handler.NewAuthHandler(svc.Auth, cfg.Auth.CookieName, cfg.Server.EnableHTTPS)

	// 使用中间件
	loggerMiddleware := middleware.NewLoggerMiddleware(logger)
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.AccessLog())
	if cfg.Log.RequestLog {
		rlc := middleware.DefaultRequestLoggerConfig()
		rlc.Enabled = true
		engine.Use(middleware.RequestLogger(logger, rlc))
	}
	engine.Use(gin.Recovery())

	// 配置CORS
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	// 令牌可选，签名图片的登录策略和管理接口都依赖它
	engine.Use(middleware.Identify(svc.Auth, cfg.Auth.CookieName))

	// 签名图片
	engine.GET(cfg.Signature.EndpointPath, signatureHandler.Serve)
	engine.HEAD(cfg.Signature.EndpointPath, signatureHandler.Serve)

	// 健康检查
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Service is running",
		})
	})

	api := engine.Group("/api/v1")
	{
		// 数据库状态检查
		api.GET("/db/status", r.dbStatus)

		api.POST("/auth/token", authHandler.Token)

		// 表单提交对匿名用户开放，其余接口需要登录
		api.POST("/forms/:id/entries", formHandler.SubmitEntry)

		admin := api.Group("", middleware.RequireAuth())
		{
			admin.POST("/forms", formHandler.CreateForm)
			admin.GET("/forms/:id", formHandler.GetForm)
			admin.DELETE("/forms/:id/entries", formHandler.DeleteEntries)

			admin.GET("/entries/:id", entryHandler.GetEntry)
			admin.DELETE("/entries/:id", entryHandler.DeleteEntry)
			admin.PUT("/entries/:id/status", entryHandler.UpdateStatus)
			admin.PUT("/entries/:id/signatures/:field_id", entryHandler.SignAgain)
			admin.DELETE("/entries/:id/signatures/:field_id", entryHandler.DeleteSignature)

			if svc.Mirror != nil {
				mirrorHandler := handler.NewMirrorHandler(svc.Mirror, svc.MirrorProvider)
				admin.GET("/mirror/logs", mirrorHandler.ListLogs)
				admin.POST("/mirror/test", mirrorHandler.TestConnection)
			}
		}
	}

	return r
}

func (r *Router) dbStatus(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"error": "Database connection error",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"error": "Database ping failed",
		})
		return
	}

	c.JSON(200, gin.H{
		"status": "Database connection OK",
	})
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
