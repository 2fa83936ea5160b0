package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"nutrition-coach/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service 使用者註冊服務
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService 創建使用者服務
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}
}

// Register 驗證資料並建立使用者
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || email == "" || password == "" {
		return nil, common.NewValidationError("name, email and password are required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, common.NewValidationError("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, common.NewValidationError("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, common.ErrInternalError.WithErr(err)
	}

	u := &User{
		ID:           common.GenerateUUID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			common.LogWarn("User already exists", zap.String("email", email))
			return nil, common.ErrUserExists
		}
		return nil, err
	}

	common.LogInfo("User registered",
		zap.String("user_id", u.ID),
	)

	return u, nil
}

// Authenticate 以電子郵件與密碼驗證使用者
// 查無使用者與密碼錯誤皆回傳 ErrInvalidCredentials
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, common.NewValidationError("email and password are required")
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		common.LogWarn("Login rejected", zap.String("user_id", u.ID))
		return nil, common.ErrInvalidCredentials
	}

	return u, nil
}

// Get 以 ID 取得使用者
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
