package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goatfit-monitor/internal/models"
)

// SubjectRepository 被监护对象仓库（Subject Registry，每个周期从库里重新读取）
type SubjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubjectRepository 创建对象仓库
func NewSubjectRepository(db *sql.DB, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		db:     db,
		logger: logger,
	}
}

// GetMonitoredSubjects 获取所有启用监控的对象
func (r *SubjectRepository) GetMonitoredSubjects(ctx context.Context) ([]models.Subject, error) {
	query := `
		SELECT
			subject_id,
			name,
			thresholds,
			provider_credentials,
			monitoring_enabled,
			last_check_at,
			created_at,
			updated_at
		FROM subjects
		WHERE monitoring_enabled = true
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitored subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		var subject models.Subject
		var thresholds, credentials []byte
		var lastCheckAt sql.NullTime

		err := rows.Scan(
			&subject.SubjectID,
			&subject.Name,
			&thresholds,
			&credentials,
			&subject.MonitoringEnabled,
			&lastCheckAt,
			&subject.CreatedAt,
			&subject.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}

		// 坏配置不进入评估，也不拖垮同一批的其他对象
		if err := json.Unmarshal(thresholds, &subject.Thresholds); err != nil {
			r.logger.Error("Skipping subject with malformed thresholds",
				zap.String("subject_id", subject.SubjectID),
				zap.Error(err),
			)
			continue
		}
		if err := json.Unmarshal(credentials, &subject.Credentials); err != nil {
			r.logger.Error("Skipping subject with malformed credentials",
				zap.String("subject_id", subject.SubjectID),
				zap.Error(err),
			)
			continue
		}

		// 阈值顺序不变量在读取时强制
		if err := subject.Thresholds.Validate(); err != nil {
			r.logger.Error("Skipping subject with invalid threshold profile",
				zap.String("subject_id", subject.SubjectID),
				zap.Error(err),
			)
			continue
		}

		if lastCheckAt.Valid {
			subject.LastCheckAt = &lastCheckAt.Time
		}

		subjects = append(subjects, subject)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subjects: %w", err)
	}

	return subjects, nil
}

// GetSubjectContacts 获取对象的启用通知的紧急联系人（按创建顺序）
func (r *SubjectRepository) GetSubjectContacts(ctx context.Context, subjectID string) ([]models.Contact, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject_id is required")
	}

	query := `
		SELECT
			contact_id,
			subject_id,
			name,
			address,
			relationship,
			notifications_enabled,
			created_at,
			updated_at
		FROM emergency_contacts
		WHERE subject_id = $1
		  AND notifications_enabled = true
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var contact models.Contact
		err := rows.Scan(
			&contact.ContactID,
			&contact.SubjectID,
			&contact.Name,
			&contact.Address,
			&contact.Relationship,
			&contact.NotificationsEnabled,
			&contact.CreatedAt,
			&contact.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}

	return contacts, nil
}

// UpdateLastCheck 更新对象的最后成功检查时间（状态面板的滞后指标）
func (r *SubjectRepository) UpdateLastCheck(ctx context.Context, subjectID string, checkedAt time.Time) error {
	if subjectID == "" {
		return fmt.Errorf("subject_id is required")
	}

	query := `
		UPDATE subjects
		SET last_check_at = $2,
		    updated_at = NOW()
		WHERE subject_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, subjectID, checkedAt)
	if err != nil {
		return fmt.Errorf("failed to update last check: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("subject not found: %s", subjectID)
	}

	return nil
}
