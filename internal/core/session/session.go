package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nutrition-coach/internal/infrastructure/config"
)

// Session 身分提供者回傳的使用者資訊
type Session struct {
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	HasPaidAccess bool   `json:"hasPaidAccess"`
}

// Provider 驗證 session token 的身分提供者
type Provider interface {
	// Resolve 解析 token，無效時回傳 common.ErrInvalidSession
	Resolve(ctx context.Context, token string) (*Session, error)
}

// Issuer 可簽發 session token 的身分提供者
// 遠端提供者自行簽發 session，不實作此介面
type Issuer interface {
	IssueToken(s Session, ttl time.Duration) (string, error)
}

// NewProvider 依設定建立身分提供者
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Auth.Provider {
	case "jwt":
		return NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), nil
	case "remote":
		return NewRemoteProvider(cfg.Auth.SessionURL, cfg.Auth.SessionTimeout), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Auth.Provider)
	}
}

// BearerToken 從 Authorization 標頭取出 token
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
