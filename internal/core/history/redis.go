package history

import (
	"context"
	"encoding/json"
	"fmt"

	"nutrition-coach/internal/infrastructure/config"
	"nutrition-coach/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStore 以 Redis list 儲存紀錄，最新的在最前面
type RedisStore struct {
	client *redis.Client
	config config.HistoryConfig
}

// NewRedisStore 創建 Redis 紀錄儲存並測試連線
func NewRedisStore(cfg config.HistoryConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("分析紀錄儲存已初始化",
		zap.String("backend", "redis"),
		zap.String("addr", cfg.RedisAddr),
		zap.Int("max_entries", cfg.MaxEntries),
	)

	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient 使用既有客戶端
func NewRedisStoreWithClient(client *redis.Client, cfg config.HistoryConfig) *RedisStore {
	return &RedisStore{
		client: client,
		config: cfg,
	}
}

// Append 新增紀錄並裁切長度、更新有效期限
func (s *RedisStore) Append(ctx context.Context, userID string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := s.generateKey(userID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	if s.config.MaxEntries > 0 {
		pipe.LTrim(ctx, key, 0, int64(s.config.MaxEntries-1))
	}
	if s.config.TTL > 0 {
		pipe.Expire(ctx, key, s.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// List 由新到舊列出紀錄
func (s *RedisStore) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := s.client.LRange(ctx, s.generateKey(userID), 0, stop).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			common.LogWarn("Skipping unreadable history entry",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping 檢查 Redis 連線
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 關閉客戶端
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// generateKey 生成紀錄鍵
func (s *RedisStore) generateKey(userID string) string {
	return fmt.Sprintf("nutrition:history:%s", userID)
}
