package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/storage"
)

type mockQuota struct {
	consumed int
	err      error
}

func (m *mockQuota) Consume(ctx context.Context, schoolID string) error {
	if m.err != nil {
		return m.err
	}
	m.consumed++
	return nil
}

type mockStore struct {
	dir     string
	present bool
}

func (m *mockStore) Exists(filename string) bool { return m.present }

func (m *mockStore) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, filename))
}

func (m *mockStore) Size(filename string) (int64, error) {
	info, err := os.Stat(filepath.Join(m.dir, filename))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func newMediaFixture(t *testing.T) *mockStore {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lesson.mp4"), []byte("fake video bytes"), 0o644))
	return &mockStore{dir: dir, present: true}
}

func newDownloadService(videos *mockVideoReader, requests *mockRequestRepo, quota *mockQuota, store *mockStore) (*DownloadService, *mockDownloadRecorder) {
	recorder := &mockDownloadRecorder{}
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	svc := NewDownloadService(videos, requests, quota, recorder, store, signer, NewMetricsService(), zap.NewNop())
	return svc, recorder
}

func TestDirectDownload(t *testing.T) {
	videos := &mockVideoReader{video: &models.Video{ID: "v1", SubjectID: "sub1", VideoPath: "lesson.mp4", Downloadable: true, Active: true}}
	quota := &mockQuota{}
	store := newMediaFixture(t)
	svc, recorder := newDownloadService(videos, &mockRequestRepo{}, quota, store)

	payload, err := svc.Direct(context.Background(), "s1", "v1")
	require.NoError(t, err)
	defer payload.File.Close()

	assert.Equal(t, "lesson.mp4", payload.Filename)
	assert.Equal(t, int64(len("fake video bytes")), payload.Size)
	assert.Equal(t, 1, quota.consumed)
	assert.Equal(t, 1, recorder.records)
}

func TestDirectDownloadMissingVideo(t *testing.T) {
	videos := &mockVideoReader{err: sql.ErrNoRows}
	quota := &mockQuota{}
	svc, recorder := newDownloadService(videos, &mockRequestRepo{}, quota, newMediaFixture(t))

	_, err := svc.Direct(context.Background(), "s1", "missing")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Zero(t, quota.consumed)
	assert.Zero(t, recorder.records)
}

func TestDirectDownloadNotDownloadable(t *testing.T) {
	videos := &mockVideoReader{video: &models.Video{ID: "v1", VideoPath: "lesson.mp4", Downloadable: false, Active: true}}
	quota := &mockQuota{}
	svc, recorder := newDownloadService(videos, &mockRequestRepo{}, quota, newMediaFixture(t))

	_, err := svc.Direct(context.Background(), "s1", "v1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotDownloadable.Code, appErr.Code)
	assert.Zero(t, quota.consumed)
	assert.Zero(t, recorder.records)
}

func TestDirectDownloadQuotaExceeded(t *testing.T) {
	videos := &mockVideoReader{video: &models.Video{ID: "v1", VideoPath: "lesson.mp4", Downloadable: true, Active: true}}
	quota := &mockQuota{err: appErrors.Clone(appErrors.ErrQuotaExceeded, "")}
	svc, recorder := newDownloadService(videos, &mockRequestRepo{}, quota, newMediaFixture(t))

	_, err := svc.Direct(context.Background(), "s1", "v1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrQuotaExceeded.Code, appErr.Code)
	assert.Zero(t, recorder.records)
}

func TestDirectDownloadFileMissingKeepsCharge(t *testing.T) {
	videos := &mockVideoReader{video: &models.Video{ID: "v1", VideoPath: "lesson.mp4", Downloadable: true, Active: true}}
	quota := &mockQuota{}
	store := newMediaFixture(t)
	store.present = false
	svc, recorder := newDownloadService(videos, &mockRequestRepo{}, quota, store)

	_, err := svc.Direct(context.Background(), "s1", "v1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, 1, quota.consumed)
	assert.Zero(t, recorder.records)
}

func TestIssueAndRedeemLink(t *testing.T) {
	video := &models.Video{ID: "v1", VideoPath: "lesson.mp4", Downloadable: true, Active: true}
	videos := &mockVideoReader{video: video}
	requests := &mockRequestRepo{request: &models.DownloadRequest{ID: "r1", SchoolID: "s1", VideoID: "v1", Status: models.DownloadStatusApproved}}
	quota := &mockQuota{}
	svc, _ := newDownloadService(videos, requests, quota, newMediaFixture(t))

	link, err := svc.IssueLink(context.Background(), "s1", "r1")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.Zero(t, quota.consumed)

	payload, err := svc.Redeem(context.Background(), link.Token)
	require.NoError(t, err)
	defer payload.File.Close()
	assert.Equal(t, "v1", payload.Video.ID)
	assert.Zero(t, quota.consumed)
}

func TestIssueLinkWrongSchool(t *testing.T) {
	requests := &mockRequestRepo{request: &models.DownloadRequest{ID: "r1", SchoolID: "s1", VideoID: "v1", Status: models.DownloadStatusApproved}}
	svc, _ := newDownloadService(&mockVideoReader{}, requests, &mockQuota{}, newMediaFixture(t))

	_, err := svc.IssueLink(context.Background(), "s2", "r1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestIssueLinkPendingRequest(t *testing.T) {
	requests := &mockRequestRepo{request: &models.DownloadRequest{ID: "r1", SchoolID: "s1", VideoID: "v1", Status: models.DownloadStatusPending}}
	svc, _ := newDownloadService(&mockVideoReader{}, requests, &mockQuota{}, newMediaFixture(t))

	_, err := svc.IssueLink(context.Background(), "s1", "r1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRedeemTamperedToken(t *testing.T) {
	svc, _ := newDownloadService(&mockVideoReader{}, &mockRequestRepo{}, &mockQuota{}, newMediaFixture(t))

	_, err := svc.Redeem(context.Background(), "v1.9999999999.bGVzc29uLm1wNA.deadbeef")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
