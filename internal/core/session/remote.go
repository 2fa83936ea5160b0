package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nutrition-coach/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// remoteSessionResponse 身分提供者 session 端點的回應
type remoteSessionResponse struct {
	User *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	HasPaidAccess bool `json:"hasPaidAccess"`
}

// RemoteProvider 透過身分提供者的 session 端點解析 token
type RemoteProvider struct {
	client *resty.Client
	url    string
}

// NewRemoteProvider 創建遠端身分提供者
func NewRemoteProvider(sessionURL string, timeout time.Duration) *RemoteProvider {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &RemoteProvider{
		client: client,
		url:    sessionURL,
	}
}

// Resolve 呼叫 session 端點，401/403 視為無效 session，其餘非 200 視為服務不可用
func (p *RemoteProvider) Resolve(ctx context.Context, token string) (*Session, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(p.url)
	if err != nil {
		common.LogError("Identity provider request failed",
			zap.Error(err),
			zap.String("url", p.url),
		)
		return nil, common.ErrIdentityUnavailable.WithErr(err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, common.ErrInvalidSession
	default:
		common.LogError("Identity provider returned unexpected status",
			zap.Int("status", resp.StatusCode()),
			zap.String("url", p.url),
		)
		return nil, common.ErrIdentityUnavailable.WithErr(fmt.Errorf("session endpoint returned %d", resp.StatusCode()))
	}

	var body remoteSessionResponse
	if err := common.ParseJSONBytes(resp.Body(), &body); err != nil {
		return nil, common.ErrIdentityUnavailable.WithErr(fmt.Errorf("failed to parse session response: %w", err))
	}

	// 空 session 代表未登入
	if body.User == nil || body.User.ID == "" {
		return nil, common.ErrInvalidSession
	}

	return &Session{
		UserID:        body.User.ID,
		Email:         body.User.Email,
		HasPaidAccess: body.HasPaidAccess,
	}, nil
}
