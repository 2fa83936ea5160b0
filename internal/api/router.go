package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nutrition-coach/internal/api/handlers/health"
	nutritionHandler "nutrition-coach/internal/api/handlers/nutrition"
	userHandler "nutrition-coach/internal/api/handlers/user"
	"nutrition-coach/internal/api/middleware"
	"nutrition-coach/internal/core/history"
	nutritionService "nutrition-coach/internal/core/nutrition"
	"nutrition-coach/internal/core/session"
	userService "nutrition-coach/internal/core/user"
	"nutrition-coach/internal/infrastructure/config"
	"nutrition-coach/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies 路由所需的服務
type Dependencies struct {
	Analyzer *nutritionService.Analyzer
	Users    *userService.Service
	Sessions session.Provider
	// History 停用時為 nil
	History history.Store
	// Checks 就緒檢查需 Ping 的依賴
	Checks map[string]health.Pinger
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Analyzer == nil || deps.Users == nil || deps.Sessions == nil {
		return nil, errors.New("router dependencies are incomplete")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) { common.WriteError(c, common.ErrNotFound) })
	router.NoMethod(func(c *gin.Context) { common.WriteError(c, common.ErrMethodNotAllowed) })

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	router.Use(requestContext(cfg))

	// 健康檢查路由
	var stats health.StatsProvider
	if sp, ok := deps.History.(health.StatsProvider); ok {
		stats = sp
	}
	healthHandler := health.NewHandler(deps.Analyzer.Table().Len(), deps.Checks, stats)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	nutritionH := nutritionHandler.NewHandler(deps.Analyzer, deps.History)
	// 僅本地簽章的提供者支援密碼登入
	issuer, _ := deps.Sessions.(session.Issuer)
	userH := userHandler.NewHandler(deps.Users, issuer, cfg.Auth.TokenTTL)

	// API 路由組
	api := router.Group("/api/v1")
	{
		nutritionGroup := api.Group("/nutrition")
		{
			nutritionGroup.POST("/analyze", middleware.OptionalSession(deps.Sessions), nutritionH.HandleAnalyze)
			nutritionGroup.GET("/foods", nutritionH.HandleListFoods)
			nutritionGroup.GET("/history",
				middleware.RequireSession(deps.Sessions),
				middleware.RequirePaidAccess(),
				nutritionH.HandleHistory,
			)
		}

		userGroup := api.Group("/users")
		{
			userGroup.POST("/register", middleware.Deduplication(cfg.DedupWindow), userH.HandleRegister)
			userGroup.POST("/login", userH.HandleLogin)
			userGroup.GET("/me", middleware.RequireSession(deps.Sessions), userH.HandleMe)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Int("foods", deps.Analyzer.Table().Len()),
		zap.Bool("history_enabled", deps.History != nil),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Duration("timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}

// requestContext 設置請求超時並注入配置
func requestContext(cfg *config.Config) gin.HandlerFunc {
	timeout := cfg.Server.RequestTimeout
	return func(c *gin.Context) {
		if timeout > 0 {
			ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
			defer cancel()
			c.Request = c.Request.WithContext(ctx)
		}

		c.Set("config", cfg)

		c.Next()

		// 檢查是否超時
		if errors.Is(c.Request.Context().Err(), context.DeadlineExceeded) {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.Writer.Header().Get("X-Request-ID")),
				zap.Duration("timeout", timeout),
			)
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
					Error: common.ErrGatewayTimeout.Message,
					Code:  common.ErrGatewayTimeout.Code,
				})
			}
		}
	}
}
