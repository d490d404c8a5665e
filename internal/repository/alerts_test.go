package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goatfit-monitor/internal/models"
)

func setupMockAlertDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewAlertRepository(db, logger)

	return db, mock, repo
}

func TestCreateAlertRecord_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	record := &models.AlertRecord{
		AlertID:          uuid.New().String(),
		EpisodeID:        uuid.New().String(),
		SubjectID:        uuid.New().String(),
		VitalType:        models.VitalHeartRate,
		Severity:         models.SeverityCritical,
		Value:            185,
		Threshold:        180,
		Message:          "Heart Rate 185.0 BPM exceeded critical threshold 180.0",
		ContactsNotified: `["carol@example.com"]`,
		SentCount:        1,
		FailedCount:      0,
		CreatedAt:        time.Now(),
	}

	mock.ExpectExec(`INSERT INTO alert_records`).
		WithArgs(
			record.AlertID,
			record.EpisodeID,
			record.SubjectID,
			"heart_rate",
			"CRITICAL",
			185.0,
			180.0,
			record.Message,
			record.ContactsNotified,
			1,
			0,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAlertRecord(context.Background(), record)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlertRecord_MissingIDs(t *testing.T) {
	db, _, repo := setupMockAlertDB(t)
	defer db.Close()

	err := repo.CreateAlertRecord(context.Background(), &models.AlertRecord{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestCreateDeliveryAttempt_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	attempt := &models.DeliveryAttempt{
		AttemptID:   uuid.New().String(),
		EpisodeID:   uuid.New().String(),
		ContactID:   uuid.New().String(),
		AttemptNo:   2,
		Outcome:     models.OutcomeFailedTransient,
		ErrorReason: "send timeout",
		AttemptedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO delivery_attempts`).
		WithArgs(
			attempt.AttemptID,
			attempt.EpisodeID,
			attempt.ContactID,
			2,
			"failed_transient",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateDeliveryAttempt(context.Background(), attempt)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDeliveryAttempt_StoreError(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	attempt := &models.DeliveryAttempt{
		AttemptID:   uuid.New().String(),
		EpisodeID:   uuid.New().String(),
		ContactID:   uuid.New().String(),
		AttemptNo:   1,
		Outcome:     models.OutcomeDelivered,
		AttemptedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO delivery_attempts`).
		WillReturnError(sql.ErrConnDone)

	err := repo.CreateDeliveryAttempt(context.Background(), attempt)

	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEpisodeAttempts_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	episodeID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"attempt_id", "episode_id", "contact_id", "attempt_no",
		"outcome", "error_reason", "attempted_at",
	}).AddRow(
		uuid.New().String(), episodeID, uuid.New().String(), 1,
		"failed_transient", "send timeout", now,
	).AddRow(
		uuid.New().String(), episodeID, uuid.New().String(), 2,
		"delivered", nil, now.Add(2*time.Second),
	)

	mock.ExpectQuery(`SELECT`).WithArgs(episodeID).WillReturnRows(rows)

	attempts, err := repo.GetEpisodeAttempts(context.Background(), episodeID)

	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, models.OutcomeFailedTransient, attempts[0].Outcome)
	assert.Equal(t, "send timeout", attempts[0].ErrorReason)
	assert.Equal(t, models.OutcomeDelivered, attempts[1].Outcome)
	assert.Empty(t, attempts[1].ErrorReason)

	require.NoError(t, mock.ExpectationsWereMet())
}
