package status

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goatfit-monitor/internal/config"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Cache.SubjectKeyPrefix = "goatfit:subject:"
	cfg.Cache.SubjectSuffix = ":status"
	cfg.Cache.SchedulerKey = "goatfit:monitor:status"
	cfg.Cache.StatusTTL = 0

	logger := zap.NewNop()
	cache := NewCache(cfg, redisClient, logger)

	return mr, cache
}

func TestCache_SubjectStatus_RoundTrip(t *testing.T) {
	mr, cache := setupTestCache(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	status := &SubjectStatus{
		SubjectID:           "subject-001",
		LastSuccessfulCheck: now,
		LastSeverity:        "WARNING",
		EpisodeState:        "open_warning",
		UpdatedAt:           now,
	}

	require.NoError(t, cache.SetSubjectStatus(ctx, status))

	// 键按配置的前缀/后缀构建
	assert.True(t, mr.Exists("goatfit:subject:subject-001:status"))

	got, err := cache.GetSubjectStatus(ctx, "subject-001")
	require.NoError(t, err)
	assert.Equal(t, "subject-001", got.SubjectID)
	assert.Equal(t, "WARNING", got.LastSeverity)
	assert.Equal(t, "open_warning", got.EpisodeState)
	assert.True(t, got.LastSuccessfulCheck.Equal(now))
}

func TestCache_GetSubjectStatus_NotFound(t *testing.T) {
	_, cache := setupTestCache(t)

	_, err := cache.GetSubjectStatus(context.Background(), "subject-missing")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "subject status not found")
}

func TestCache_SubjectStatus_TTL(t *testing.T) {
	mr, cache := setupTestCache(t)
	cache.config.Cache.StatusTTL = 300

	status := &SubjectStatus{
		SubjectID: "subject-002",
		UpdatedAt: time.Now(),
	}

	require.NoError(t, cache.SetSubjectStatus(context.Background(), status))

	ttl := mr.TTL("goatfit:subject:subject-002:status")
	assert.Equal(t, 300*time.Second, ttl)
}

func TestCache_SchedulerStatus_RoundTrip(t *testing.T) {
	_, cache := setupTestCache(t)

	ctx := context.Background()
	tickAt := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, cache.SetSchedulerStatus(ctx, &SchedulerStatus{
		Active:     true,
		LastTickAt: &tickAt,
		UpdatedAt:  tickAt,
	}))

	got, err := cache.GetSchedulerStatus(ctx)
	require.NoError(t, err)
	assert.True(t, got.Active)
	require.NotNil(t, got.LastTickAt)
	assert.True(t, got.LastTickAt.Equal(tickAt))

	// 停机时翻转为 inactive
	require.NoError(t, cache.SetSchedulerStatus(ctx, &SchedulerStatus{
		Active:    false,
		UpdatedAt: time.Now(),
	}))

	got, err = cache.GetSchedulerStatus(ctx)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestCache_GetSchedulerStatus_NotFound(t *testing.T) {
	_, cache := setupTestCache(t)

	_, err := cache.GetSchedulerStatus(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler status not found")
}
