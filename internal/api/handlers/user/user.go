package user

import (
	"net/http"
	"time"

	"nutrition-coach/internal/api/middleware"
	"nutrition-coach/internal/core/session"
	userService "nutrition-coach/internal/core/user"
	"nutrition-coach/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRequest 註冊請求
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 登入請求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse 登入回應，token 作為 Authorization: Bearer 使用
type LoginResponse struct {
	Success   bool              `json:"success"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      *userService.User `json:"user"`
}

// UserResponse 使用者回應
type UserResponse struct {
	Success bool              `json:"success"`
	User    *userService.User `json:"user"`
}

// Handler 使用者處理程序
type Handler struct {
	users    *userService.Service
	issuer   session.Issuer
	tokenTTL time.Duration
}

// NewHandler 創建使用者處理程序
// issuer 為 nil 時（遠端身分提供者）停用密碼登入
func NewHandler(users *userService.Service, issuer session.Issuer, tokenTTL time.Duration) *Handler {
	return &Handler{
		users:    users,
		issuer:   issuer,
		tokenTTL: tokenTTL,
	}
}

// HandleRegister 處理 POST /users/register
func (h *Handler) HandleRegister(c *gin.Context) {
	requestID := common.RequestID(c)

	var req RegisterRequest
	if err := common.DecodeJSONStrict(c.Request.Body, &req); err != nil {
		common.LogWarn("註冊請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		common.WriteError(c, common.ErrInvalidRequest.WithErr(err))
		return
	}

	u, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if _, ok := common.AsCustomError(err); !ok && !common.IsValidationError(err) {
			common.LogError("註冊失敗",
				zap.Error(err),
				zap.String("request_id", requestID),
			)
		}
		common.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, UserResponse{Success: true, User: u})
}

// HandleLogin 處理 POST /users/login
// 驗證密碼後簽發以使用者 ID 為 subject 的 session token
func (h *Handler) HandleLogin(c *gin.Context) {
	requestID := common.RequestID(c)

	if h.issuer == nil {
		common.WriteError(c, common.ErrLoginUnavailable)
		return
	}

	var req LoginRequest
	if err := common.DecodeJSONStrict(c.Request.Body, &req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.WithErr(err))
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if _, ok := common.AsCustomError(err); !ok && !common.IsValidationError(err) {
			common.LogError("登入失敗",
				zap.Error(err),
				zap.String("request_id", requestID),
			)
		}
		common.WriteError(c, err)
		return
	}

	expiresAt := time.Now().Add(h.tokenTTL).UTC().Truncate(time.Second)
	token, err := h.issuer.IssueToken(session.Session{UserID: u.ID, Email: u.Email}, h.tokenTTL)
	if err != nil {
		common.LogError("簽發 token 失敗",
			zap.Error(err),
			zap.String("user_id", u.ID),
			zap.String("request_id", requestID),
		)
		common.WriteError(c, common.ErrInternalError.WithErr(err))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      u,
	})
}

// HandleMe 處理 GET /users/me
func (h *Handler) HandleMe(c *gin.Context) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		common.WriteError(c, common.ErrUnauthorized)
		return
	}

	u, err := h.users.Get(c.Request.Context(), s.UserID)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{Success: true, User: u})
}
