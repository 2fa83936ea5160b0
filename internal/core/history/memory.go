package history

import (
	"context"
	"sync"
	"time"

	"nutrition-coach/internal/infrastructure/config"
	"nutrition-coach/internal/pkg/common"

	"go.uber.org/zap"
)

// MemoryStore 記憶體紀錄儲存
type MemoryStore struct {
	config config.HistoryConfig
	mu     sync.RWMutex
	store  map[string]*userHistory
	stats  storeStats
	done   chan struct{}
	once   sync.Once
	now    func() time.Time
}

// userHistory 單一使用者的紀錄，entries 由舊到新
type userHistory struct {
	entries    []Entry
	expiresAt  time.Time
	lastAccess time.Time
}

// storeStats 儲存統計
type storeStats struct {
	appends   int64
	reads     int64
	evictions int64
	expired   int64
}

// NewMemoryStore 創建記憶體紀錄儲存並啟動清理協程
func NewMemoryStore(cfg config.HistoryConfig) *MemoryStore {
	s := &MemoryStore{
		config: cfg,
		store:  make(map[string]*userHistory),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	if cfg.CleanupInterval > 0 {
		go s.startCleanup()
	}

	common.LogInfo("分析紀錄儲存已初始化",
		zap.String("backend", "memory"),
		zap.Int("max_entries", cfg.MaxEntries),
		zap.Int("max_users", cfg.MaxUsers),
		zap.Duration("ttl", cfg.TTL),
	)

	return s
}

// Append 新增紀錄
func (s *MemoryStore) Append(ctx context.Context, userID string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	h, exists := s.store[userID]
	if exists && now.After(h.expiresAt) {
		delete(s.store, userID)
		s.stats.expired++
		exists = false
	}

	if !exists {
		// 檢查使用者數量上限
		if s.config.MaxUsers > 0 && len(s.store) >= s.config.MaxUsers {
			s.cleanup()
			if len(s.store) >= s.config.MaxUsers {
				s.evictLRU()
			}
		}
		h = &userHistory{}
		s.store[userID] = h
	}

	h.entries = append(h.entries, entry)
	if over := len(h.entries) - s.config.MaxEntries; s.config.MaxEntries > 0 && over > 0 {
		h.entries = append([]Entry(nil), h.entries[over:]...)
	}
	h.expiresAt = now.Add(s.config.TTL)
	h.lastAccess = now
	s.stats.appends++

	return nil
}

// List 由新到舊列出紀錄
func (s *MemoryStore) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.reads++
	now := s.now()
	h, exists := s.store[userID]
	if !exists {
		return []Entry{}, nil
	}
	if now.After(h.expiresAt) {
		delete(s.store, userID)
		s.stats.expired++
		return []Entry{}, nil
	}
	h.lastAccess = now

	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

// startCleanup 定期清理過期紀錄
func (s *MemoryStore) startCleanup() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.cleanup()
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// cleanup 清理過期使用者，呼叫者需持有寫鎖
func (s *MemoryStore) cleanup() int {
	now := s.now()
	count := 0

	for userID, h := range s.store {
		if now.After(h.expiresAt) {
			delete(s.store, userID)
			count++
		}
	}
	s.stats.expired += int64(count)

	if count > 0 {
		common.LogDebug("Cleaned up expired history",
			zap.Int("count", count),
			zap.Int("remaining_users", len(s.store)),
		)
	}

	return count
}

// evictLRU 淘汰最久未存取的使用者，呼叫者需持有寫鎖
func (s *MemoryStore) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time

	for userID, h := range s.store {
		if oldestKey == "" || h.lastAccess.Before(oldestAccess) {
			oldestKey = userID
			oldestAccess = h.lastAccess
		}
	}

	if oldestKey != "" {
		delete(s.store, oldestKey)
		s.stats.evictions++
		common.LogDebug("History evicted (LRU)",
			zap.String("user_id", oldestKey),
		)
	}
}

// GetStats 取得統計資訊
func (s *MemoryStore) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"users":     len(s.store),
		"max_users": s.config.MaxUsers,
		"appends":   s.stats.appends,
		"reads":     s.stats.reads,
		"evictions": s.stats.evictions,
		"expired":   s.stats.expired,
	}
}

// Close 停止清理協程並清空資料
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store = make(map[string]*userHistory)
	common.LogInfo("分析紀錄儲存已關閉",
		zap.Int64("appends", s.stats.appends),
		zap.Int64("evictions", s.stats.evictions),
	)
	return nil
}
