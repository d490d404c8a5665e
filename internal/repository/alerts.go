package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"goatfit-monitor/internal/models"
)

// AlertRepository 报警审计仓库（alert_records 与 delivery_attempts 只追加，写后不改）
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建审计仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlertRecord 写入报警记录（每次通知事件一条）
func (r *AlertRepository) CreateAlertRecord(ctx context.Context, record *models.AlertRecord) error {
	if record == nil {
		return fmt.Errorf("alert record is required")
	}
	if record.AlertID == "" || record.EpisodeID == "" {
		return fmt.Errorf("alert_id and episode_id are required")
	}

	query := `
		INSERT INTO alert_records (
			alert_id,
			episode_id,
			subject_id,
			vital_type,
			severity,
			value,
			threshold,
			message,
			contacts_notified,
			sent_count,
			failed_count,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	contactsNotified := record.ContactsNotified
	if contactsNotified == "" {
		contactsNotified = "[]"
	}

	_, err := r.db.ExecContext(ctx, query,
		record.AlertID,
		record.EpisodeID,
		record.SubjectID,
		string(record.VitalType),
		record.Severity.String(),
		record.Value,
		record.Threshold,
		record.Message,
		contactsNotified,
		record.SentCount,
		record.FailedCount,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert record: %w", err)
	}

	r.logger.Info("Alert record created",
		zap.String("alert_id", record.AlertID),
		zap.String("episode_id", record.EpisodeID),
		zap.String("subject_id", record.SubjectID),
		zap.String("severity", record.Severity.String()),
		zap.Int("sent_count", record.SentCount),
		zap.Int("failed_count", record.FailedCount),
	)

	return nil
}

// CreateDeliveryAttempt 追加一条投递尝试记录
func (r *AlertRepository) CreateDeliveryAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error {
	if attempt == nil {
		return fmt.Errorf("delivery attempt is required")
	}
	if attempt.EpisodeID == "" || attempt.ContactID == "" {
		return fmt.Errorf("episode_id and contact_id are required")
	}

	query := `
		INSERT INTO delivery_attempts (
			attempt_id,
			episode_id,
			contact_id,
			attempt_no,
			outcome,
			error_reason,
			attempted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	var errorReason sql.NullString
	if attempt.ErrorReason != "" {
		errorReason = sql.NullString{String: attempt.ErrorReason, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		attempt.AttemptID,
		attempt.EpisodeID,
		attempt.ContactID,
		attempt.AttemptNo,
		string(attempt.Outcome),
		errorReason,
		attempt.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery attempt: %w", err)
	}

	return nil
}

// GetEpisodeAttempts 查询某事件的全部投递尝试（按时间顺序，供审计查询）
func (r *AlertRepository) GetEpisodeAttempts(ctx context.Context, episodeID string) ([]models.DeliveryAttempt, error) {
	if episodeID == "" {
		return nil, fmt.Errorf("episode_id is required")
	}

	query := `
		SELECT
			attempt_id,
			episode_id,
			contact_id,
			attempt_no,
			outcome,
			error_reason,
			attempted_at
		FROM delivery_attempts
		WHERE episode_id = $1
		ORDER BY attempted_at
	`

	rows, err := r.db.QueryContext(ctx, query, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.DeliveryAttempt
	for rows.Next() {
		var attempt models.DeliveryAttempt
		var outcome string
		var errorReason sql.NullString

		err := rows.Scan(
			&attempt.AttemptID,
			&attempt.EpisodeID,
			&attempt.ContactID,
			&attempt.AttemptNo,
			&outcome,
			&errorReason,
			&attempt.AttemptedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery attempt: %w", err)
		}

		attempt.Outcome = models.DeliveryOutcome(outcome)
		if errorReason.Valid {
			attempt.ErrorReason = errorReason.String
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery attempts: %w", err)
	}

	return attempts, nil
}
