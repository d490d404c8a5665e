package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goatfit-monitor/internal/config"
	"goatfit-monitor/internal/evaluator"
	"goatfit-monitor/internal/models"
)

// AuditStore 投递审计存储（由 repository.AlertRepository 实现）
type AuditStore interface {
	CreateAlertRecord(ctx context.Context, record *models.AlertRecord) error
	CreateDeliveryAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error
}

// EpisodeSnapshot 触发通知时的事件快照
type EpisodeSnapshot struct {
	EpisodeID   string
	SubjectID   string
	SubjectName string
	VitalType   models.VitalType
	Severity    models.Severity
	Value       float64
	Threshold   float64
	Bound       models.Bound
	Trend       *evaluator.TrendSummary
	At          time.Time
}

// ContactOutcome 单个联系人的投递结果
type ContactOutcome struct {
	ContactID string
	Address   string
	Delivered bool
	Attempts  int
	LastError string
}

// DispatchResult 一次通知事件的聚合结果
// Dispatch 从不向上抛错，调度器总能拿到结果继续处理其他对象
type DispatchResult struct {
	AlertID     string
	SentCount   int
	FailedCount int
	Outcomes    []ContactOutcome
	RecordErr   error // 报警记录写入失败（调用方据此决定不提交事件状态）
}

// Dispatcher 通知分发器
// 每个联系人独立投递：瞬时失败按指数退避重试，永久失败不重试；
// 每次尝试追加一条 delivery_attempts，全部联系人处理完后写一条 alert_records
type Dispatcher struct {
	channel     Channel
	store       AuditStore
	policy      config.RetryPolicy
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewDispatcher 创建分发器
func NewDispatcher(channel Channel, store AuditStore, policy config.RetryPolicy, sendTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		channel:     channel,
		store:       store,
		policy:      policy,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Dispatch 向所有联系人投递事件通知
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot EpisodeSnapshot, contacts []models.Contact) DispatchResult {
	result := DispatchResult{
		AlertID: uuid.New().String(),
	}

	msg := AlertMessage{
		SubjectName: snapshot.SubjectName,
		VitalType:   snapshot.VitalType,
		Severity:    snapshot.Severity,
		Value:       snapshot.Value,
		Threshold:   snapshot.Threshold,
		Bound:       snapshot.Bound,
		Trend:       snapshot.Trend,
		Timestamp:   snapshot.At,
	}

	var notified []string
	for _, contact := range contacts {
		if !contact.NotificationsEnabled {
			continue
		}

		outcome := d.deliverToContact(ctx, snapshot, contact, msg)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Delivered {
			result.SentCount++
			notified = append(notified, contact.Address)
		} else {
			result.FailedCount++
		}
	}

	// 全部联系人处理完后写入报警记录（每次通知事件一条，写后不改）
	record := &models.AlertRecord{
		AlertID:          result.AlertID,
		EpisodeID:        snapshot.EpisodeID,
		SubjectID:        snapshot.SubjectID,
		VitalType:        snapshot.VitalType,
		Severity:         snapshot.Severity,
		Value:            snapshot.Value,
		Threshold:        snapshot.Threshold,
		Message:          buildAlertText(snapshot),
		ContactsNotified: marshalNotified(notified),
		SentCount:        result.SentCount,
		FailedCount:      result.FailedCount,
		CreatedAt:        time.Now(),
	}

	if err := d.store.CreateAlertRecord(ctx, record); err != nil {
		result.RecordErr = err
		d.logger.Error("Failed to create alert record",
			zap.String("alert_id", result.AlertID),
			zap.String("episode_id", snapshot.EpisodeID),
			zap.Error(err),
		)
	}

	d.logger.Info("Alert dispatched",
		zap.String("alert_id", result.AlertID),
		zap.String("subject_id", snapshot.SubjectID),
		zap.String("severity", snapshot.Severity.String()),
		zap.Int("sent_count", result.SentCount),
		zap.Int("failed_count", result.FailedCount),
	)

	return result
}

// deliverToContact 向单个联系人投递（含重试）
func (d *Dispatcher) deliverToContact(ctx context.Context, snapshot EpisodeSnapshot, contact models.Contact, msg AlertMessage) ContactOutcome {
	outcome := ContactOutcome{
		ContactID: contact.ContactID,
		Address:   contact.Address,
	}

	for attemptNo := 1; attemptNo <= d.policy.MaxAttempts; attemptNo++ {
		outcome.Attempts = attemptNo

		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := d.channel.Send(sendCtx, contact.Address, msg)
		cancel()

		d.recordAttempt(ctx, snapshot.EpisodeID, contact.ContactID, attemptNo, err)

		if err == nil {
			outcome.Delivered = true
			return outcome
		}

		outcome.LastError = err.Error()

		if IsPermanent(err) {
			d.logger.Warn("Permanent delivery failure, not retrying",
				zap.String("contact_id", contact.ContactID),
				zap.String("address", contact.Address),
				zap.Error(err),
			)
			return outcome
		}

		d.logger.Warn("Transient delivery failure",
			zap.String("contact_id", contact.ContactID),
			zap.Int("attempt_no", attemptNo),
			zap.Error(err),
		)

		if attemptNo < d.policy.MaxAttempts {
			if !sleepContext(ctx, d.backoff(attemptNo)) {
				// 上下文取消，放弃剩余重试
				return outcome
			}
		}
	}

	return outcome
}

// recordAttempt 追加投递尝试记录（审计失败只记日志，不影响投递流程）
func (d *Dispatcher) recordAttempt(ctx context.Context, episodeID, contactID string, attemptNo int, sendErr error) {
	attempt := &models.DeliveryAttempt{
		AttemptID:   uuid.New().String(),
		EpisodeID:   episodeID,
		ContactID:   contactID,
		AttemptNo:   attemptNo,
		Outcome:     models.OutcomeDelivered,
		AttemptedAt: time.Now(),
	}

	if sendErr != nil {
		attempt.ErrorReason = sendErr.Error()
		if IsPermanent(sendErr) {
			attempt.Outcome = models.OutcomeFailedPermanent
		} else {
			attempt.Outcome = models.OutcomeFailedTransient
		}
	}

	if err := d.store.CreateDeliveryAttempt(ctx, attempt); err != nil {
		d.logger.Error("Failed to record delivery attempt",
			zap.String("episode_id", episodeID),
			zap.String("contact_id", contactID),
			zap.Int("attempt_no", attemptNo),
			zap.Error(err),
		)
	}
}

// backoff 指数退避：base * 2^(attempt-1)，封顶 MaxDelay
func (d *Dispatcher) backoff(attemptNo int) time.Duration {
	delay := d.policy.BaseDelay
	for i := 1; i < attemptNo; i++ {
		delay *= 2
		if delay >= d.policy.MaxDelay {
			return d.policy.MaxDelay
		}
	}
	if delay > d.policy.MaxDelay {
		return d.policy.MaxDelay
	}
	return delay
}

// sleepContext 可中断的等待，返回 false 表示上下文已取消
func sleepContext(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// buildAlertText 构建报警文本
func buildAlertText(snapshot EpisodeSnapshot) string {
	direction := "exceeded"
	if snapshot.Bound == models.BoundLow {
		direction = "dropped below"
	}
	return fmt.Sprintf("%s %.1f %s %s %s threshold %.1f",
		vitalDisplay(snapshot.VitalType),
		snapshot.Value,
		snapshot.VitalType.Unit(),
		direction,
		snapshot.Severity.String(),
		snapshot.Threshold,
	)
}

func vitalDisplay(v models.VitalType) string {
	switch v {
	case models.VitalHeartRate:
		return "Heart Rate"
	default:
		return string(v)
	}
}

func marshalNotified(addresses []string) string {
	if len(addresses) == 0 {
		return "[]"
	}
	data, err := json.Marshal(addresses)
	if err != nil {
		return "[]"
	}
	return string(data)
}
