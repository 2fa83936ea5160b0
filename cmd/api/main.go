package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutrition-coach/internal/api"
	"nutrition-coach/internal/api/handlers/health"
	"nutrition-coach/internal/core/history"
	"nutrition-coach/internal/core/nutrition"
	"nutrition-coach/internal/core/session"
	"nutrition-coach/internal/core/user"
	"nutrition-coach/internal/infrastructure/config"
	"nutrition-coach/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("auth_provider", cfg.Auth.Provider),
		zap.String("history_backend", cfg.History.Backend),
		zap.Bool("history_enabled", cfg.History.Enabled),
		zap.String("sqlite_path", cfg.Storage.SQLitePath),
	)

	// 初始化使用者資料庫
	repo, err := user.NewSQLiteRepository(cfg.Storage.SQLitePath)
	if err != nil {
		common.LogFatal("Failed to open user database", zap.Error(err))
	}
	defer repo.Close()

	// 初始化分析紀錄
	store, err := history.NewStore(cfg)
	if err != nil {
		common.LogFatal("Failed to initialize history store", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	sessions, err := session.NewProvider(cfg)
	if err != nil {
		common.LogFatal("Failed to initialize session provider", zap.Error(err))
	}

	checks := map[string]health.Pinger{"sqlite": repo}
	if p, ok := store.(health.Pinger); ok {
		checks["history"] = p
	}

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Analyzer: nutrition.NewAnalyzer(nil),
		Users:    user.NewService(repo),
		Sessions: sessions,
		History:  store,
		Checks:   checks,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		return
	}

	common.LogInfo("Server exited")
}
