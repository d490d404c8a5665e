package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"goatfit-monitor/internal/config"
	"goatfit-monitor/internal/episode"
	"goatfit-monitor/internal/evaluator"
	"goatfit-monitor/internal/models"
	"goatfit-monitor/internal/notifier"
	"goatfit-monitor/internal/status"
)

// SubjectRegistry 对象注册表（由 repository.SubjectRepository 实现）
type SubjectRegistry interface {
	GetMonitoredSubjects(ctx context.Context) ([]models.Subject, error)
	GetSubjectContacts(ctx context.Context, subjectID string) ([]models.Contact, error)
	UpdateLastCheck(ctx context.Context, subjectID string, checkedAt time.Time) error
}

// EpisodeStore 事件持久化（由 repository.EpisodeRepository 实现）
type EpisodeStore interface {
	GetEpisode(ctx context.Context, subjectID string, vitalType models.VitalType) (*models.Episode, error)
	UpsertEpisode(ctx context.Context, episode *models.Episode) error
}

// ReadingProvider 读数来源（由 provider.Client 实现）
type ReadingProvider interface {
	FetchReadings(ctx context.Context, creds models.ProviderCredential, vitalType models.VitalType, window time.Duration) ([]models.Reading, error)
}

// AlertDispatcher 通知分发（由 notifier.Dispatcher 实现）
type AlertDispatcher interface {
	Dispatch(ctx context.Context, snapshot notifier.EpisodeSnapshot, contacts []models.Contact) notifier.DispatchResult
}

// StatusReporter 状态面板写入（由 status.Cache 实现）
type StatusReporter interface {
	SetSubjectStatus(ctx context.Context, s *status.SubjectStatus) error
	SetSchedulerStatus(ctx context.Context, s *status.SchedulerStatus) error
}

// 当前监控的体征类型
var monitoredVitals = []models.VitalType{
	models.VitalHeartRate,
}

// Scheduler 监控调度器
// 唯一的周期驱动者，也是事件状态变更的唯一主体：
// 同一 (subject, vital_type) 的评估通过键锁串行化，慢周期与下一个周期
// 重叠时不会重复打开或重复通知同一事件
type Scheduler struct {
	config     *config.Config
	registry   SubjectRegistry
	episodes   EpisodeStore
	provider   ReadingProvider
	dispatcher AlertDispatcher
	statusRep  StatusReporter
	tracker    *episode.Tracker
	logger     *zap.Logger

	locks *keyLocks
}

// NewScheduler 创建调度器
func NewScheduler(
	cfg *config.Config,
	registry SubjectRegistry,
	episodes EpisodeStore,
	provider ReadingProvider,
	dispatcher AlertDispatcher,
	statusRep StatusReporter,
	tracker *episode.Tracker,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		config:     cfg,
		registry:   registry,
		episodes:   episodes,
		provider:   provider,
		dispatcher: dispatcher,
		statusRep:  statusRep,
		tracker:    tracker,
		logger:     logger,
		locks:      newKeyLocks(),
	}
}

// Run 启动调度循环，阻塞到 ctx 取消
// 关闭时等待在途周期完成，超过宽限期则放弃并记警告
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Monitoring scheduler started",
		zap.Duration("tick_interval", s.config.Monitor.TickInterval),
		zap.Duration("polling_window", s.config.Monitor.PollingWindow),
		zap.Int("worker_count", s.config.Monitor.WorkerCount),
	)

	s.markActive(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.loop(ctx)
	}()

	<-ctx.Done()

	// 有界宽限期：在途周期要么完成，要么被显式放弃
	select {
	case <-done:
	case <-time.After(s.config.Monitor.ShutdownGrace):
		s.logger.Warn("Abandoning in-flight tick after shutdown grace period",
			zap.Duration("grace", s.config.Monitor.ShutdownGrace),
		)
	}

	s.markActive(false)
	s.logger.Info("Monitoring scheduler stopped")

	return nil
}

// loop 定时循环（启动时立即执行一次）
func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Monitor.TickInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick 单个监控周期：加载对象并分发给 worker 池并发评估
// 单个对象的失败不影响其他对象；整轮失败触发退避
func (s *Scheduler) tick(ctx context.Context) {
	subjects, err := s.registry.GetMonitoredSubjects(ctx)
	if err != nil {
		s.logger.Error("Failed to load monitored subjects, backing off",
			zap.Duration("backoff", s.config.Monitor.LoopBackoff),
			zap.Error(err),
		)
		sleepContext(ctx, s.config.Monitor.LoopBackoff)
		return
	}

	s.logger.Debug("Tick started",
		zap.Int("subject_count", len(subjects)),
	)

	// 有界 worker 池：对象之间相互独立，无顺序要求
	jobs := make(chan models.Subject)
	doneCh := make(chan struct{})

	workers := s.config.Monitor.WorkerCount
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { doneCh <- struct{}{} }()
			for subject := range jobs {
				if ctx.Err() != nil {
					continue
				}
				s.processSubject(ctx, subject)
			}
		}()
	}

	for _, subject := range subjects {
		jobs <- subject
	}
	close(jobs)

	for i := 0; i < workers; i++ {
		<-doneCh
	}

	now := time.Now()
	if err := s.statusRep.SetSchedulerStatus(ctx, &status.SchedulerStatus{
		Active:     true,
		LastTickAt: &now,
		UpdatedAt:  now,
	}); err != nil {
		s.logger.Warn("Failed to publish scheduler status",
			zap.Error(err),
		)
	}
}

// processSubject 处理单个对象的全部监控体征
// 所有失败都被捕获并记日志，绝不向上传播
func (s *Scheduler) processSubject(ctx context.Context, subject models.Subject) {
	allOK := true
	for _, vital := range monitoredVitals {
		if !s.evaluateVital(ctx, subject, vital) {
			allOK = false
		}
	}

	if !allOK {
		return
	}

	// 全部体征处理成功才推进 last_successful_check
	checkedAt := time.Now()
	if err := s.registry.UpdateLastCheck(ctx, subject.SubjectID, checkedAt); err != nil {
		s.logger.Error("Failed to update last check time",
			zap.String("subject_id", subject.SubjectID),
			zap.Error(err),
		)
	}
}

// evaluateVital 单个 (subject, vital_type) 键位的完整评估管线
// 返回 false 表示本周期该键位未完成，下个周期从持久化状态重新评估
func (s *Scheduler) evaluateVital(ctx context.Context, subject models.Subject, vital models.VitalType) bool {
	// 同一键位的评估互斥；上一个慢周期还没放锁就跳过，留给下个周期
	key := lockKey(subject.SubjectID, vital)
	if !s.locks.tryLock(key) {
		s.logger.Warn("Evaluation already in flight for key, skipping this tick",
			zap.String("subject_id", subject.SubjectID),
			zap.String("vital_type", string(vital)),
		)
		return false
	}
	defer s.locks.unlock(key)

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.Provider.FetchTimeout)
	readings, err := s.provider.FetchReadings(fetchCtx, subject.Credentials, vital, s.config.Monitor.PollingWindow)
	cancel()
	if err != nil {
		// 拉取失败：记日志，下个周期重试，不影响其他对象
		s.logger.Error("Provider fetch failed",
			zap.String("subject_id", subject.SubjectID),
			zap.String("vital_type", string(vital)),
			zap.Error(err),
		)
		return false
	}

	if len(readings) == 0 {
		// 窗口内没有读数不是错误，本周期跳过该对象
		s.logger.Debug("No readings available, skipping subject this tick",
			zap.String("subject_id", subject.SubjectID),
			zap.String("vital_type", string(vital)),
		)
		return true
	}

	latest := evaluator.LatestReading(readings)
	assessment := evaluator.Evaluate(latest.Value, subject.Thresholds)

	prev, err := s.episodes.GetEpisode(ctx, subject.SubjectID, vital)
	if err != nil {
		s.logger.Error("Failed to load episode state",
			zap.String("subject_id", subject.SubjectID),
			zap.String("vital_type", string(vital)),
			zap.Error(err),
		)
		return false
	}

	now := time.Now()
	result := s.tracker.Advance(prev, assessment, subject.SubjectID, vital, now)

	if result.Notify {
		if !s.notify(ctx, subject, vital, assessment, result.Episode, readings) {
			// 通知或其审计写入失败：不提交状态变更，
			// 下个周期从上次的持久化状态重新评估（至少一次投递）
			return false
		}
	}

	if result.Episode != nil {
		if err := s.episodes.UpsertEpisode(ctx, result.Episode); err != nil {
			s.logger.Error("Failed to persist episode state, transition not committed",
				zap.String("subject_id", subject.SubjectID),
				zap.String("vital_type", string(vital)),
				zap.Error(err),
			)
			return false
		}
	}

	s.publishSubjectStatus(ctx, subject.SubjectID, assessment, result.Episode, prev)

	return true
}

// notify 触发通知：分发给联系人并写审计记录
// 分发和审计写入作为一个逻辑单元，审计失败视为整体失败
func (s *Scheduler) notify(ctx context.Context, subject models.Subject, vital models.VitalType, assessment evaluator.Assessment, ep *models.Episode, readings []models.Reading) bool {
	contacts, err := s.registry.GetSubjectContacts(ctx, subject.SubjectID)
	if err != nil {
		s.logger.Error("Failed to load contacts for notification",
			zap.String("subject_id", subject.SubjectID),
			zap.Error(err),
		)
		return false
	}

	trend := evaluator.AnalyzeTrend(readings)

	snapshot := notifier.EpisodeSnapshot{
		EpisodeID:   ep.EpisodeID,
		SubjectID:   subject.SubjectID,
		SubjectName: subject.Name,
		VitalType:   vital,
		Severity:    assessment.Severity,
		Value:       assessment.Value,
		Threshold:   assessment.Threshold,
		Bound:       assessment.Bound,
		At:          time.Now(),
	}
	if trend.Analyzed {
		snapshot.Trend = &trend
	}

	result := s.dispatcher.Dispatch(ctx, snapshot, contacts)

	s.logger.Info("Notification dispatched for episode",
		zap.String("episode_id", ep.EpisodeID),
		zap.String("subject_id", subject.SubjectID),
		zap.String("severity", assessment.Severity.String()),
		zap.Int("sent_count", result.SentCount),
		zap.Int("failed_count", result.FailedCount),
	)

	return result.RecordErr == nil
}

// publishSubjectStatus 把对象状态镜像到 Redis（失败只记日志）
func (s *Scheduler) publishSubjectStatus(ctx context.Context, subjectID string, assessment evaluator.Assessment, next, prev *models.Episode) {
	state := models.EpisodeClosed
	if next != nil {
		state = next.State
	} else if prev != nil {
		state = prev.State
	}

	now := time.Now()
	err := s.statusRep.SetSubjectStatus(ctx, &status.SubjectStatus{
		SubjectID:           subjectID,
		LastSuccessfulCheck: now,
		LastSeverity:        assessment.Severity.String(),
		EpisodeState:        string(state),
		UpdatedAt:           now,
	})
	if err != nil {
		s.logger.Warn("Failed to publish subject status",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}
}

// markActive 发布调度器 active/inactive 标志
// 关闭路径上原始 ctx 已取消，用独立的短超时上下文
func (s *Scheduler) markActive(active bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.statusRep.SetSchedulerStatus(ctx, &status.SchedulerStatus{
		Active:    active,
		UpdatedAt: time.Now(),
	}); err != nil {
		s.logger.Warn("Failed to publish scheduler active flag",
			zap.Bool("active", active),
			zap.Error(err),
		)
	}
}

// sleepContext 可中断的等待
func sleepContext(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func lockKey(subjectID string, vital models.VitalType) string {
	return subjectID + ":" + string(vital)
}
