package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vls-api/internal/models"
)

func TestCreateDownloadRequest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRequestRepository(db)

	mock.ExpectExec("INSERT INTO download_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.DownloadRequest{SchoolID: "s1", VideoID: "v1"}
	err := repo.Create(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadStatusPending, request.Status)
	assert.NotEmpty(t, request.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDownloadRequestDuplicatePending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRequestRepository(db)

	mock.ExpectExec("INSERT INTO download_requests").
		WillReturnError(&pq.Error{Code: pq.ErrorCode(pgUniqueViolation)})

	err := repo.Create(context.Background(), &models.DownloadRequest{SchoolID: "s1", VideoID: "v1"})
	assert.ErrorIs(t, err, ErrDuplicatePending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveConsumesQuota(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRequestRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "school_id", "video_id", "status", "requested_at", "reviewed_at", "reviewed_by", "reason"}).
		AddRow("r1", "s1", "v1", string(models.DownloadStatusPending), now, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM download_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schools SET quota_used = quota_used + 1")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE download_requests SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	request, err := repo.Approve(context.Background(), "r1", "admin-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadStatusApproved, request.Status)
	require.NotNil(t, request.ReviewedBy)
	assert.Equal(t, "admin-1", *request.ReviewedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveQuotaExhaustedKeepsPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRequestRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "school_id", "video_id", "status", "requested_at", "reviewed_at", "reviewed_by", "reason"}).
		AddRow("r1", "s1", "v1", string(models.DownloadStatusPending), now, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM download_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schools SET quota_used = quota_used + 1")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "r1", "admin-1", nil)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveAlreadyReviewed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRequestRepository(db)

	now := time.Now()
	reviewer := "admin-1"
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "school_id", "video_id", "status", "requested_at", "reviewed_at", "reviewed_by", "reason"}).
		AddRow("r1", "s1", "v1", string(models.DownloadStatusApproved), now, now, reviewer, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM download_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(rows)
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "r1", "admin-2", nil)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectAlreadyReviewed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRequestRepository(db)

	now := time.Now()
	reviewer := "admin-1"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE download_requests SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"id", "school_id", "video_id", "status", "requested_at", "reviewed_at", "reviewed_by", "reason"}).
		AddRow("r1", "s1", "v1", string(models.DownloadStatusRejected), now, now, reviewer, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM download_requests WHERE id = $1")).
		WithArgs("r1").
		WillReturnRows(rows)

	_, err := repo.Reject(context.Background(), "r1", "admin-2", nil)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}
