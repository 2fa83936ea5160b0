package history

import (
	"context"
	"fmt"
	"time"

	"nutrition-coach/internal/core/nutrition"
	"nutrition-coach/internal/infrastructure/config"
)

// Entry 一筆分析紀錄
type Entry struct {
	ID             string               `json:"id"`
	Foods          []nutrition.FoodItem `json:"foods"`
	Analysis       nutrition.Analysis   `json:"analysis"`
	ProcessedFoods int                  `json:"processedFoods"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// Store 使用者分析紀錄儲存介面
type Store interface {
	// Append 新增紀錄，超過上限時捨棄最舊的紀錄
	Append(ctx context.Context, userID string, entry Entry) error
	// List 由新到舊列出最多 limit 筆紀錄，limit <= 0 表示全部
	List(ctx context.Context, userID string, limit int) ([]Entry, error)
	Close() error
}

// NewStore 依設定建立紀錄儲存，停用時回傳 nil
func NewStore(cfg *config.Config) (Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}

	switch cfg.History.Backend {
	case "memory":
		return NewMemoryStore(cfg.History), nil
	case "redis":
		s, err := NewRedisStore(cfg.History)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}
