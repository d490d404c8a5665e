package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"goatfit-monitor/internal/config"
	"goatfit-monitor/internal/episode"
	"goatfit-monitor/internal/notifier"
	"goatfit-monitor/internal/provider"
	"goatfit-monitor/internal/repository"
	"goatfit-monitor/internal/scheduler"
	"goatfit-monitor/internal/status"
)

// MonitorService 健康监控服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	subjectRepo *repository.SubjectRepository
	episodeRepo *repository.EpisodeRepository
	alertRepo   *repository.AlertRepository
	provider    *provider.Client
	dispatcher  *notifier.Dispatcher
	statusCache *status.Cache
	scheduler   *scheduler.Scheduler
}

// NewMonitorService 创建监控服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试数据库连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	subjectRepo := repository.NewSubjectRepository(db, logger)
	episodeRepo := repository.NewEpisodeRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)

	// 4. 创建数据提供方客户端
	providerClient := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.FetchTimeout, logger)

	// 5. 创建通知层
	emailChannel := notifier.NewEmailChannel(cfg.Notify.GatewayURL, cfg.Notify.SendTimeout, logger)
	dispatcher := notifier.NewDispatcher(emailChannel, alertRepo, cfg.Notify.Retry, cfg.Notify.SendTimeout, logger)

	// 6. 创建状态镜像
	statusCache := status.NewCache(cfg, redisClient, logger)

	// 7. 创建调度器
	tracker := episode.NewTracker(cfg.Monitor.HysteresisTicks, logger)
	sched := scheduler.NewScheduler(
		cfg,
		subjectRepo,
		episodeRepo,
		providerClient,
		dispatcher,
		statusCache,
		tracker,
		logger,
	)

	return &MonitorService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		subjectRepo: subjectRepo,
		episodeRepo: episodeRepo,
		alertRepo:   alertRepo,
		provider:    providerClient,
		dispatcher:  dispatcher,
		statusCache: statusCache,
		scheduler:   sched,
	}, nil
}

// Start 启动服务（阻塞到 ctx 取消）
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.Duration("tick_interval", s.config.Monitor.TickInterval),
	)

	if err := s.scheduler.Run(ctx); err != nil {
		return fmt.Errorf("scheduler stopped with error: %w", err)
	}

	return nil
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	// 关闭 Redis 连接
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
