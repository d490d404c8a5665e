package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"goatfit-monitor/internal/config"
)

// SubjectStatus 单个对象的监控状态快照（供外部面板读取）
type SubjectStatus struct {
	SubjectID           string    `json:"subject_id"`
	LastSuccessfulCheck time.Time `json:"last_successful_check"`
	LastSeverity        string    `json:"last_severity"`
	EpisodeState        string    `json:"episode_state"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SchedulerStatus 调度器整体状态
type SchedulerStatus struct {
	Active     bool       `json:"active"`
	LastTickAt *time.Time `json:"last_tick_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Cache Redis 状态缓存管理器
// 监控的滞后程度通过 last_successful_check 对外暴露，而不是抛错
type Cache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCache 创建状态缓存管理器
func NewCache(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// subjectKey 构建对象状态键
func (c *Cache) subjectKey(subjectID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.SubjectKeyPrefix,
		subjectID,
		c.config.Cache.SubjectSuffix,
	)
}

// SetSubjectStatus 写入对象状态
func (c *Cache) SetSubjectStatus(ctx context.Context, status *SubjectStatus) error {
	jsonData, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal subject status: %w", err)
	}

	ttl := time.Duration(c.config.Cache.StatusTTL) * time.Second
	err = c.redisClient.Set(ctx, c.subjectKey(status.SubjectID), jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set subject status: %w", err)
	}

	return nil
}

// GetSubjectStatus 读取对象状态
func (c *Cache) GetSubjectStatus(ctx context.Context, subjectID string) (*SubjectStatus, error) {
	val, err := c.redisClient.Get(ctx, c.subjectKey(subjectID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("subject status not found: %s", subjectID)
		}
		return nil, fmt.Errorf("failed to get subject status: %w", err)
	}

	var status SubjectStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subject status: %w", err)
	}

	return &status, nil
}

// SetSchedulerStatus 写入调度器状态（active/inactive 标志）
func (c *Cache) SetSchedulerStatus(ctx context.Context, status *SchedulerStatus) error {
	jsonData, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal scheduler status: %w", err)
	}

	err = c.redisClient.Set(ctx, c.config.Cache.SchedulerKey, jsonData, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to set scheduler status: %w", err)
	}

	c.logger.Debug("Scheduler status updated",
		zap.Bool("active", status.Active),
	)

	return nil
}

// GetSchedulerStatus 读取调度器状态
func (c *Cache) GetSchedulerStatus(ctx context.Context) (*SchedulerStatus, error) {
	val, err := c.redisClient.Get(ctx, c.config.Cache.SchedulerKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("scheduler status not found")
		}
		return nil, fmt.Errorf("failed to get scheduler status: %w", err)
	}

	var status SchedulerStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scheduler status: %w", err)
	}

	return &status, nil
}
