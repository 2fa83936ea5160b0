package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutrition-coach/internal/pkg/common"
)

// requestCache 請求指紋與最後出現時間
type requestCache struct {
	sync.Mutex
	requests    map[string]time.Time
	lastCleanup time.Time
}

// prune 移除超過 10 個視窗的舊指紋，呼叫者需持有鎖
func (rc *requestCache) prune(now time.Time, window time.Duration) {
	if now.Sub(rc.lastCleanup) < 10*window {
		return
	}
	for k, t := range rc.requests {
		if now.Sub(t) > 10*window {
			delete(rc.requests, k)
		}
	}
	rc.lastCleanup = now
}

// Deduplication 請求去重中間件，同一客戶端在 window 內重送相同 POST 內容時回傳 429
func Deduplication(window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Second
	}
	cache := &requestCache{
		requests:    make(map[string]time.Time),
		lastCleanup: time.Now(),
	}

	return func(c *gin.Context) {
		// 只處理 POST 請求
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		// 計算請求體哈希
		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				abortUnreadableBody(c, err)
				return
			}

			hash := sha256.Sum256(body)
			bodyHash = hex.EncodeToString(hash[:])

			// 恢復請求體
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		// 生成請求指紋
		fingerprint := c.ClientIP() + ":" + c.Request.Method + ":" + c.Request.URL.Path
		if bodyHash != "" {
			fingerprint += ":" + bodyHash
		}

		now := time.Now()
		cache.Lock()
		cache.prune(now, window)
		lastTime, exists := cache.requests[fingerprint]
		duplicate := exists && now.Sub(lastTime) <= window
		cache.Unlock()

		if duplicate {
			common.LogWarn("Duplicate request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrorResponse{
				Error: "Request too frequent",
				Code:  common.ErrCodeTooManyRequests,
			})
			return
		}

		c.Next()

		// 只記錄成功的請求，失敗後可立即重試
		if status := c.Writer.Status(); status >= http.StatusOK && status < http.StatusMultipleChoices {
			cache.Lock()
			cache.requests[fingerprint] = time.Now()
			cache.Unlock()
		}
	}
}

// abortUnreadableBody 讀取請求體失敗時中止請求，超過大小上限回傳 413
func abortUnreadableBody(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		common.LogWarn("Request body too large",
			zap.Int64("max_size", maxErr.Limit),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, common.ErrorResponse{
			Error:   "Request body too large",
			Details: fmt.Sprintf("max %d bytes", maxErr.Limit),
		})
		return
	}

	common.LogWarn("Failed to read request body", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadRequest, common.ErrorResponse{
		Error: common.ErrInvalidRequest.Message,
		Code:  common.ErrInvalidRequest.Code,
	})
}
