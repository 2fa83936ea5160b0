package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"nutrition-coach/internal/core/nutrition"
	"nutrition-coach/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.HistoryConfig {
	return config.HistoryConfig{
		Enabled:    true,
		Backend:    "memory",
		MaxEntries: 3,
		MaxUsers:   2,
		TTL:        time.Hour,
	}
}

func entry(id string) Entry {
	return Entry{
		ID:             id,
		Foods:          []nutrition.FoodItem{{Name: "saumon", Quantity: 100, Unit: "g"}},
		ProcessedFoods: 1,
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestMemoryStore_OrderAndCap(t *testing.T) {
	s := NewMemoryStore(testConfig())
	defer s.Close()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, "u1", entry(fmt.Sprintf("e%d", i))))
	}

	all, err := s.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e5", "e4", "e3"}, ids(all))

	two, err := s.List(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e5", "e4"}, ids(two))

	none, err := s.List(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(testConfig())
	defer s.Close()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Append(ctx, "u1", entry("old")))
	now = now.Add(2 * time.Hour)

	got, err := s.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.EqualValues(t, 1, s.GetStats()["expired"])
}

func TestMemoryStore_EvictsLeastRecentlyUsedUser(t *testing.T) {
	s := NewMemoryStore(testConfig())
	defer s.Close()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Append(ctx, "u1", entry("a")))
	now = now.Add(time.Minute)
	require.NoError(t, s.Append(ctx, "u2", entry("b")))
	now = now.Add(time.Minute)
	// u1 變成最近存取
	_, err := s.List(ctx, "u1", 0)
	require.NoError(t, err)
	now = now.Add(time.Minute)
	require.NoError(t, s.Append(ctx, "u3", entry("c")))

	u2, err := s.List(ctx, "u2", 0)
	require.NoError(t, err)
	assert.Empty(t, u2)

	u1, err := s.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(u1))

	stats := s.GetStats()
	assert.EqualValues(t, 1, stats["evictions"])
	assert.Equal(t, 2, stats["users"])
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = time.Millisecond
	s := NewMemoryStore(cfg)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestNewStore(t *testing.T) {
	cfg := &config.Config{History: testConfig()}

	s, err := NewStore(cfg)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)
	s.Close()

	cfg.History.Enabled = false
	s, err = NewStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg.History.Enabled = true
	cfg.History.Backend = "etcd"
	_, err = NewStore(cfg)
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	cfg := testConfig()
	cfg.Backend = "redis"
	cfg.RedisAddr = addr
	s, err := NewRedisStore(cfg)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	userID := "test-" + time.Now().Format("150405.000000")
	defer s.client.Del(ctx, s.generateKey(userID))

	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Append(ctx, userID, entry(fmt.Sprintf("e%d", i))))
	}

	all, err := s.List(ctx, userID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e3", "e2"}, ids(all))

	one, err := s.List(ctx, userID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, ids(one))
}
