package episode

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goatfit-monitor/internal/evaluator"
	"goatfit-monitor/internal/models"
)

// Tracker 事件状态机
// 把同一 (subject_id, vital_type) 的连续越限读数去重为单个可通知事件：
// 只有打开和升级产生通知，降级和持续越限不重复通知，
// 连续 hysteresisTicks 个正常周期后才关闭（防抖动）
type Tracker struct {
	hysteresisTicks int
	logger          *zap.Logger
}

// NewTracker 创建状态机
func NewTracker(hysteresisTicks int, logger *zap.Logger) *Tracker {
	if hysteresisTicks < 1 {
		hysteresisTicks = 1
	}
	return &Tracker{
		hysteresisTicks: hysteresisTicks,
		logger:          logger,
	}
}

// Result 状态推进结果
type Result struct {
	Episode *models.Episode // 待持久化的事件状态；nil 表示本周期无需写入
	Notify  bool            // 是否触发通知（打开或升级时为 true）
}

// Advance 根据新的评估结果推进事件状态
// prev 为当前持久化状态（nil 表示该 (subject, vital_type) 从未有过事件）
// 纯计算，不持久化；调用方在通知和审计写入成功后才提交返回的状态
func (t *Tracker) Advance(prev *models.Episode, a evaluator.Assessment, subjectID string, vitalType models.VitalType, at time.Time) Result {
	// 0 值读数是无数据哨兵，不推进任何状态（包括迟滞计数）
	if a.Value == 0 {
		return Result{}
	}

	state := models.EpisodeClosed
	if prev != nil {
		state = prev.State
	}

	switch {
	case !state.IsOpen():
		if a.Severity == models.SeverityNormal {
			// 无事件且一切正常，无需写入
			return Result{}
		}
		// CLOSED + WARNING/CRITICAL → 打开新事件并通知
		return Result{Episode: t.open(subjectID, vitalType, a, at), Notify: true}

	case state == models.EpisodeOpenWarning:
		switch a.Severity {
		case models.SeverityCritical:
			// 升级必须通知
			next := *prev
			next.State = models.EpisodeOpenCritical
			next.CurrentSeverity = models.SeverityCritical
			next.NotifiedSeverity = models.SeverityCritical
			next.LastValue = a.Value
			next.LastEvaluatedAt = at
			next.NormalStreak = 0
			next.UpdatedAt = at
			return Result{Episode: &next, Notify: true}
		case models.SeverityWarning:
			// 状态未变，不重复通知
			next := *prev
			next.LastValue = a.Value
			next.LastEvaluatedAt = at
			next.NormalStreak = 0
			next.UpdatedAt = at
			return Result{Episode: &next}
		default:
			return Result{Episode: t.coolDown(prev, a, at)}
		}

	default: // open_critical
		if a.Severity == models.SeverityNormal {
			return Result{Episode: t.coolDown(prev, a, at)}
		}
		// 仍然越限（含降级到 WARNING）：级别单调不降，不重复通知
		next := *prev
		next.LastValue = a.Value
		next.LastEvaluatedAt = at
		next.NormalStreak = 0
		next.UpdatedAt = at
		return Result{Episode: &next}
	}
}

// open 创建新事件
func (t *Tracker) open(subjectID string, vitalType models.VitalType, a evaluator.Assessment, at time.Time) *models.Episode {
	state := models.EpisodeOpenWarning
	if a.Severity == models.SeverityCritical {
		state = models.EpisodeOpenCritical
	}

	opened := at
	return &models.Episode{
		EpisodeID:        uuid.New().String(),
		SubjectID:        subjectID,
		VitalType:        vitalType,
		State:            state,
		OpenedAt:         &opened,
		CurrentSeverity:  a.Severity,
		LastValue:        a.Value,
		LastEvaluatedAt:  at,
		NotifiedSeverity: a.Severity,
		NormalStreak:     0,
		UpdatedAt:        at,
	}
}

// coolDown 处理打开状态下的正常读数：累计迟滞计数，达到后关闭
func (t *Tracker) coolDown(prev *models.Episode, a evaluator.Assessment, at time.Time) *models.Episode {
	next := *prev
	next.NormalStreak++
	next.LastValue = a.Value
	next.LastEvaluatedAt = at
	next.UpdatedAt = at

	if next.NormalStreak >= t.hysteresisTicks {
		closed := at
		next.State = models.EpisodeClosed
		next.ClosedAt = &closed

		t.logger.Info("Episode closed",
			zap.String("episode_id", next.EpisodeID),
			zap.String("subject_id", next.SubjectID),
			zap.String("vital_type", string(next.VitalType)),
			zap.Int("normal_streak", next.NormalStreak),
		)
	}

	return &next
}
