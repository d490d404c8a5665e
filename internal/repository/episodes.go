package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"goatfit-monitor/internal/models"
)

// EpisodeRepository 事件仓库
// episodes 表按 (subject_id, vital_type) 唯一，一个键位最多一行持久化状态
type EpisodeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEpisodeRepository 创建事件仓库
func NewEpisodeRepository(db *sql.DB, logger *zap.Logger) *EpisodeRepository {
	return &EpisodeRepository{
		db:     db,
		logger: logger,
	}
}

// GetEpisode 获取某个键位的事件状态（不存在返回 nil，不视为错误）
func (r *EpisodeRepository) GetEpisode(ctx context.Context, subjectID string, vitalType models.VitalType) (*models.Episode, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject_id is required")
	}

	query := `
		SELECT
			episode_id,
			subject_id,
			vital_type,
			state,
			opened_at,
			current_severity,
			last_value,
			last_evaluated_at,
			notified_severity,
			normal_streak,
			closed_at,
			updated_at
		FROM episodes
		WHERE subject_id = $1
		  AND vital_type = $2
	`

	var episode models.Episode
	var vital string
	var state string
	var currentSeverity, notifiedSeverity string
	var openedAt, closedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, subjectID, string(vitalType)).Scan(
		&episode.EpisodeID,
		&episode.SubjectID,
		&vital,
		&state,
		&openedAt,
		&currentSeverity,
		&episode.LastValue,
		&episode.LastEvaluatedAt,
		&notifiedSeverity,
		&episode.NormalStreak,
		&closedAt,
		&episode.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	episode.VitalType = models.VitalType(vital)
	episode.State = models.EpisodeState(state)

	if episode.CurrentSeverity, err = models.ParseSeverity(currentSeverity); err != nil {
		return nil, fmt.Errorf("episode %s: %w", episode.EpisodeID, err)
	}
	if episode.NotifiedSeverity, err = models.ParseSeverity(notifiedSeverity); err != nil {
		return nil, fmt.Errorf("episode %s: %w", episode.EpisodeID, err)
	}

	if openedAt.Valid {
		episode.OpenedAt = &openedAt.Time
	}
	if closedAt.Valid {
		episode.ClosedAt = &closedAt.Time
	}

	return &episode, nil
}

// UpsertEpisode 写入事件状态（幂等：同一键位重复写入以最新为准）
func (r *EpisodeRepository) UpsertEpisode(ctx context.Context, episode *models.Episode) error {
	if episode == nil {
		return fmt.Errorf("episode is required")
	}
	if episode.SubjectID == "" || episode.VitalType == "" {
		return fmt.Errorf("subject_id and vital_type are required")
	}

	query := `
		INSERT INTO episodes (
			episode_id,
			subject_id,
			vital_type,
			state,
			opened_at,
			current_severity,
			last_value,
			last_evaluated_at,
			notified_severity,
			normal_streak,
			closed_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (subject_id, vital_type) DO UPDATE SET
			episode_id = EXCLUDED.episode_id,
			state = EXCLUDED.state,
			opened_at = EXCLUDED.opened_at,
			current_severity = EXCLUDED.current_severity,
			last_value = EXCLUDED.last_value,
			last_evaluated_at = EXCLUDED.last_evaluated_at,
			notified_severity = EXCLUDED.notified_severity,
			normal_streak = EXCLUDED.normal_streak,
			closed_at = EXCLUDED.closed_at,
			updated_at = EXCLUDED.updated_at
	`

	var openedAt, closedAt sql.NullTime
	if episode.OpenedAt != nil {
		openedAt = sql.NullTime{Time: *episode.OpenedAt, Valid: true}
	}
	if episode.ClosedAt != nil {
		closedAt = sql.NullTime{Time: *episode.ClosedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		episode.EpisodeID,
		episode.SubjectID,
		string(episode.VitalType),
		string(episode.State),
		openedAt,
		episode.CurrentSeverity.String(),
		episode.LastValue,
		episode.LastEvaluatedAt,
		episode.NotifiedSeverity.String(),
		episode.NormalStreak,
		closedAt,
		episode.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert episode: %w", err)
	}

	r.logger.Debug("Episode upserted",
		zap.String("episode_id", episode.EpisodeID),
		zap.String("subject_id", episode.SubjectID),
		zap.String("state", string(episode.State)),
	)

	return nil
}
