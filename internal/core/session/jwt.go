package session

import (
	"context"
	"fmt"
	"time"

	"nutrition-coach/internal/pkg/common"

	"github.com/golang-jwt/jwt/v4"
)

// Claims session token 的內容
type Claims struct {
	Email string `json:"email"`
	Paid  bool   `json:"paid"`
	jwt.RegisteredClaims
}

// JWTProvider 以共用密鑰驗證 HS256 token
type JWTProvider struct {
	secret []byte
	issuer string
}

// NewJWTProvider 創建 JWT 身分提供者
func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Resolve 驗證簽章、有效期限與簽發者
func (p *JWTProvider) Resolve(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidSession.WithErr(err)
	}
	if p.issuer != "" && !claims.VerifyIssuer(p.issuer, true) {
		return nil, common.ErrInvalidSession.WithErr(fmt.Errorf("unexpected issuer %q", claims.Issuer))
	}
	if claims.Subject == "" {
		return nil, common.ErrInvalidSession.WithErr(fmt.Errorf("missing subject"))
	}

	return &Session{
		UserID:        claims.Subject,
		Email:         claims.Email,
		HasPaidAccess: claims.Paid,
	}, nil
}

// IssueToken 簽發 session token，供密碼登入使用
func (p *JWTProvider) IssueToken(s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: s.Email,
		Paid:  s.HasPaidAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
