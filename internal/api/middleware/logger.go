package middleware

import (
	"net/http"
	"time"

	"nutrition-coach/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestFields 組出單一請求的日誌欄位，已驗證的 session 會帶上使用者資訊
func requestFields(c *gin.Context) []zap.Field {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}

	fields := []zap.Field{
		zap.String("request_id", common.RequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("route", route),
		zap.String("ip", c.ClientIP()),
	}
	if s, ok := SessionFrom(c); ok {
		fields = append(fields,
			zap.String("user_id", s.UserID),
			zap.Bool("paid", s.HasPaidAccess),
		)
	}
	return fields
}

// Logger 請求日誌中間件
// 5xx 記為錯誤，4xx 記為警告，其餘為請求完成
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := append(requestFields(c),
			zap.Int("status", status),
			zap.Int("response_bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		)
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			common.LogError("伺服器錯誤", fields...)
		case status >= http.StatusBadRequest:
			common.LogWarn("用戶端錯誤", fields...)
		default:
			common.LogInfo("請求完成", fields...)
		}
	}
}

// Recovery 攔截 panic，回傳不含細節的 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				common.LogError("Panic recovered",
					append(requestFields(c),
						zap.Any("panic", err),
						zap.Stack("stack"),
					)...,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, common.ErrorResponse{
					Error: common.ErrInternalError.Message,
					Code:  common.ErrInternalError.Code,
				})
			}
		}()

		c.Next()
	}
}
