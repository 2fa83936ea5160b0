package middleware

import (
	"net/http"

	"nutrition-coach/internal/core/session"
	"nutrition-coach/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionContextKey = "session"

// SessionFrom 取得已驗證的 session
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, exists := c.Get(sessionContextKey)
	if !exists {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok && s != nil
}

// OptionalSession 有提供有效 token 時附加 session，否則以匿名身分繼續
func OptionalSession(provider session.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := session.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		s, err := provider.Resolve(c.Request.Context(), token)
		if err != nil {
			common.LogDebug("Ignoring invalid session",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Set(sessionContextKey, s)
		c.Next()
	}
}

// RequireSession 需要有效 session，否則回傳 401
func RequireSession(provider session.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := session.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.ErrorResponse{
				Error: common.ErrUnauthorized.Message,
				Code:  common.ErrUnauthorized.Code,
			})
			return
		}

		s, err := provider.Resolve(c.Request.Context(), token)
		if err != nil {
			common.LogWarn("Session rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
				zap.Error(err),
			)
			common.WriteError(c, err)
			c.Abort()
			return
		}

		c.Set(sessionContextKey, s)
		c.Next()
	}
}

// RequirePaidAccess 需要有效訂閱，須置於 RequireSession 之後
func RequirePaidAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := SessionFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.ErrorResponse{
				Error: common.ErrUnauthorized.Message,
				Code:  common.ErrUnauthorized.Code,
			})
			return
		}
		if !s.HasPaidAccess {
			c.AbortWithStatusJSON(http.StatusForbidden, common.ErrorResponse{
				Error: common.ErrPaidAccessRequired.Message,
				Code:  common.ErrPaidAccessRequired.Code,
			})
			return
		}
		c.Next()
	}
}
