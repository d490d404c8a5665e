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
)

func setupMockSubjectDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SubjectRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewSubjectRepository(db, logger)

	return db, mock, repo
}

func TestGetMonitoredSubjects_Success(t *testing.T) {
	db, mock, repo := setupMockSubjectDB(t)
	defer db.Close()

	ctx := context.Background()
	subjectID := uuid.New().String()
	now := time.Now()
	lastCheck := now.Add(-time.Minute)

	rows := sqlmock.NewRows([]string{
		"subject_id", "name", "thresholds", "provider_credentials",
		"monitoring_enabled", "last_check_at", "created_at", "updated_at",
	}).AddRow(
		subjectID, "Alice",
		`{"low_critical": 40, "low_warning": 50, "high_warning": 140, "high_critical": 180}`,
		`{"access_token": "tok-1", "provider_user_id": "me"}`,
		true, lastCheck, now, now,
	)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	subjects, err := repo.GetMonitoredSubjects(ctx)

	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, subjectID, subjects[0].SubjectID)
	assert.Equal(t, "Alice", subjects[0].Name)
	assert.Equal(t, 40.0, subjects[0].Thresholds.LowCritical)
	assert.Equal(t, 180.0, subjects[0].Thresholds.HighCritical)
	assert.Equal(t, "tok-1", subjects[0].Credentials.AccessToken)
	assert.True(t, subjects[0].MonitoringEnabled)
	require.NotNil(t, subjects[0].LastCheckAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMonitoredSubjects_Empty(t *testing.T) {
	db, mock, repo := setupMockSubjectDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"subject_id", "name", "thresholds", "provider_credentials",
		"monitoring_enabled", "last_check_at", "created_at", "updated_at",
	})
	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	subjects, err := repo.GetMonitoredSubjects(context.Background())

	require.NoError(t, err)
	assert.Empty(t, subjects)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMonitoredSubjects_InvalidThresholdsSkipped(t *testing.T) {
	// 坏的阈值配置在读取时被拦下，不进入评估，也不影响同批的其他对象
	db, mock, repo := setupMockSubjectDB(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"subject_id", "name", "thresholds", "provider_credentials",
		"monitoring_enabled", "last_check_at", "created_at", "updated_at",
	}).AddRow(
		uuid.New().String(), "Bob",
		`{"low_critical": 90, "low_warning": 50, "high_warning": 140, "high_critical": 180}`,
		`{"access_token": "tok-2", "provider_user_id": "bob"}`,
		true, nil, now, now,
	).AddRow(
		uuid.New().String(), "Eve",
		`{"low_critical": 40, "low_warning": 50, "high_warning": 140, "high_critical": 180}`,
		`{"access_token": "tok-3", "provider_user_id": "eve"}`,
		true, nil, now, now,
	)
	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	subjects, err := repo.GetMonitoredSubjects(context.Background())

	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Eve", subjects[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubjectContacts_Success(t *testing.T) {
	db, mock, repo := setupMockSubjectDB(t)
	defer db.Close()

	subjectID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"contact_id", "subject_id", "name", "address",
		"relationship", "notifications_enabled", "created_at", "updated_at",
	}).AddRow(
		uuid.New().String(), subjectID, "Carol", "carol@example.com",
		"daughter", true, now, now,
	).AddRow(
		uuid.New().String(), subjectID, "Dan", "dan@example.com",
		"son", true, now.Add(time.Second), now,
	)

	mock.ExpectQuery(`SELECT`).WithArgs(subjectID).WillReturnRows(rows)

	contacts, err := repo.GetSubjectContacts(context.Background(), subjectID)

	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "carol@example.com", contacts[0].Address)
	assert.Equal(t, "daughter", contacts[0].Relationship)
	assert.True(t, contacts[0].NotificationsEnabled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubjectContacts_MissingSubjectID(t *testing.T) {
	db, _, repo := setupMockSubjectDB(t)
	defer db.Close()

	_, err := repo.GetSubjectContacts(context.Background(), "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "subject_id is required")
}

func TestUpdateLastCheck_Success(t *testing.T) {
	db, mock, repo := setupMockSubjectDB(t)
	defer db.Close()

	subjectID := uuid.New().String()
	checkedAt := time.Now()

	mock.ExpectExec(`UPDATE subjects`).
		WithArgs(subjectID, checkedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLastCheck(context.Background(), subjectID, checkedAt)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastCheck_NotFound(t *testing.T) {
	db, mock, repo := setupMockSubjectDB(t)
	defer db.Close()

	subjectID := uuid.New().String()
	checkedAt := time.Now()

	mock.ExpectExec(`UPDATE subjects`).
		WithArgs(subjectID, checkedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateLastCheck(context.Background(), subjectID, checkedAt)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "subject not found")
	require.NoError(t, mock.ExpectationsWereMet())
}
