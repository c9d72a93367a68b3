package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/repository"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type mockRequestRepo struct {
	request    *models.DownloadRequest
	createErr  error
	findErr    error
	approveErr error
	rejectErr  error
	created    []*models.DownloadRequest
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.DownloadRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	request.ID = "r1"
	request.Status = models.DownloadStatusPending
	request.RequestedAt = time.Now().UTC()
	m.created = append(m.created, request)
	return nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.DownloadRequest, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.request, nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter models.DownloadRequestFilter) ([]models.DownloadRequest, int, error) {
	if m.request == nil {
		return nil, 0, nil
	}
	return []models.DownloadRequest{*m.request}, 1, nil
}

func (m *mockRequestRepo) Approve(ctx context.Context, id, reviewerID string, reason *string) (*models.DownloadRequest, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	now := time.Now().UTC()
	m.request.Status = models.DownloadStatusApproved
	m.request.ReviewedAt = &now
	m.request.ReviewedBy = &reviewerID
	m.request.Reason = reason
	return m.request, nil
}

func (m *mockRequestRepo) Reject(ctx context.Context, id, reviewerID string, reason *string) (*models.DownloadRequest, error) {
	if m.rejectErr != nil {
		return nil, m.rejectErr
	}
	now := time.Now().UTC()
	m.request.Status = models.DownloadStatusRejected
	m.request.ReviewedAt = &now
	m.request.ReviewedBy = &reviewerID
	m.request.Reason = reason
	return m.request, nil
}

type mockVideoReader struct {
	video *models.Video
	err   error
}

func (m *mockVideoReader) FindActive(ctx context.Context, id string) (*models.Video, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.video, nil
}

type mockAuditRepo struct {
	logs []*models.AuditLog
}

func (m *mockAuditRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockDownloadRecorder struct {
	records int
	err     error
}

func (m *mockDownloadRecorder) RecordDownload(ctx context.Context, schoolID, videoID, subjectID string) error {
	if m.err != nil {
		return m.err
	}
	m.records++
	return nil
}

func newRequestService(requests *mockRequestRepo, videos *mockVideoReader) (*RequestService, *mockAuditRepo, *mockDownloadRecorder) {
	audit := &mockAuditRepo{}
	recorder := &mockDownloadRecorder{}
	svc := NewRequestService(requests, videos, audit, recorder, NewMetricsService(), zap.NewNop())
	return svc, audit, recorder
}

func TestCreateRequest(t *testing.T) {
	requests := &mockRequestRepo{}
	videos := &mockVideoReader{video: &models.Video{ID: "v1", Title: "Fractions", Downloadable: true, Active: true}}
	svc, _, _ := newRequestService(requests, videos)

	request, err := svc.Create(context.Background(), "s1", "v1")
	require.NoError(t, err)
	assert.Equal(t, models.DownloadStatusPending, request.Status)
	assert.Equal(t, "Fractions", request.VideoTitle)
}

func TestCreateRequestNotDownloadable(t *testing.T) {
	requests := &mockRequestRepo{}
	videos := &mockVideoReader{video: &models.Video{ID: "v1", Downloadable: false, Active: true}}
	svc, _, _ := newRequestService(requests, videos)

	_, err := svc.Create(context.Background(), "s1", "v1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotDownloadable.Code, appErr.Code)
	assert.Empty(t, requests.created)
}

func TestCreateRequestMissingVideo(t *testing.T) {
	requests := &mockRequestRepo{}
	videos := &mockVideoReader{err: sql.ErrNoRows}
	svc, _, _ := newRequestService(requests, videos)

	_, err := svc.Create(context.Background(), "s1", "v1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateRequestDuplicatePending(t *testing.T) {
	requests := &mockRequestRepo{createErr: repository.ErrDuplicatePending}
	videos := &mockVideoReader{video: &models.Video{ID: "v1", Downloadable: true, Active: true}}
	svc, _, _ := newRequestService(requests, videos)

	_, err := svc.Create(context.Background(), "s1", "v1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicatePending.Code, appErr.Code)
}

func TestReviewApproveRecordsOneDownload(t *testing.T) {
	requests := &mockRequestRepo{request: &models.DownloadRequest{ID: "r1", SchoolID: "s1", VideoID: "v1", Status: models.DownloadStatusPending}}
	videos := &mockVideoReader{video: &models.Video{ID: "v1", SubjectID: "sub1", Downloadable: true, Active: true}}
	svc, audit, recorder := newRequestService(requests, videos)

	request, err := svc.Review(context.Background(), "r1", "admin-1", ReviewDecision{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.DownloadStatusApproved, request.Status)
	assert.Equal(t, 1, recorder.records)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestReview, audit.logs[0].Action)
}

func TestReviewApproveQuotaExhausted(t *testing.T) {
	requests := &mockRequestRepo{
		request:    &models.DownloadRequest{ID: "r1", SchoolID: "s1", VideoID: "v1", Status: models.DownloadStatusPending},
		approveErr: repository.ErrQuotaExhausted,
	}
	videos := &mockVideoReader{video: &models.Video{ID: "v1", Downloadable: true, Active: true}}
	svc, _, recorder := newRequestService(requests, videos)

	_, err := svc.Review(context.Background(), "r1", "admin-1", ReviewDecision{Approve: true})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrQuotaExceeded.Code, appErr.Code)
	assert.Equal(t, models.DownloadStatusPending, requests.request.Status)
	assert.Zero(t, recorder.records)
}

func TestReviewRejectNoLedgerTouch(t *testing.T) {
	requests := &mockRequestRepo{request: &models.DownloadRequest{ID: "r1", SchoolID: "s1", VideoID: "v1", Status: models.DownloadStatusPending}}
	videos := &mockVideoReader{video: &models.Video{ID: "v1", Downloadable: true, Active: true}}
	svc, _, recorder := newRequestService(requests, videos)

	reason := "not part of current curriculum"
	request, err := svc.Review(context.Background(), "r1", "admin-1", ReviewDecision{Approve: false, Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, models.DownloadStatusRejected, request.Status)
	assert.Zero(t, recorder.records)
}

func TestReviewTerminalRequest(t *testing.T) {
	requests := &mockRequestRepo{
		request:   &models.DownloadRequest{ID: "r1", Status: models.DownloadStatusRejected},
		rejectErr: repository.ErrNotPending,
	}
	videos := &mockVideoReader{}
	svc, _, _ := newRequestService(requests, videos)

	_, err := svc.Review(context.Background(), "r1", "admin-1", ReviewDecision{Approve: false})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestGetRequestScopedToOwner(t *testing.T) {
	requests := &mockRequestRepo{request: &models.DownloadRequest{ID: "r1", SchoolID: "s1"}}
	videos := &mockVideoReader{}
	svc, _, _ := newRequestService(requests, videos)

	_, err := svc.Get(context.Background(), "r1", &models.JWTClaims{ActorID: "s2", Role: models.RoleSchool})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	request, err := svc.Get(context.Background(), "r1", &models.JWTClaims{ActorID: "admin-1", Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	assert.Equal(t, "r1", request.ID)
}
