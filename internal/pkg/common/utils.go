package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// RequestID 取得請求 ID，若無則生成並寫回響應頭
func RequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.Writer.Header().Get("X-Request-ID")
	}
	if requestID == "" {
		requestID = GenerateUUID()
		c.Header("X-Request-ID", requestID)
	}
	return requestID
}

// WriteError 依錯誤類型寫入錯誤響應
// 驗證錯誤回傳 400，自定義錯誤回傳其狀態碼，其餘一律 500 且不洩漏細節
func WriteError(c *gin.Context, err error) {
	if IsValidationError(err) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if ce, ok := AsCustomError(err); ok {
		c.JSON(ce.Status, ErrorResponse{Error: ce.Message, Code: ce.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrInternalError.Message})
}
