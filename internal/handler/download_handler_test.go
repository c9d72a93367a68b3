package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vls-api/internal/middleware"
	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/repository"
	"github.com/noah-isme/vls-api/internal/service"
	"github.com/noah-isme/vls-api/pkg/storage"
)

type fakeRequestRepo struct {
	createErr  error
	byID       *models.DownloadRequest
	byIDErr    error
	reviewed   *models.DownloadRequest
	reviewErr  error
	lastStatus models.DownloadRequestStatus
}

func (f *fakeRequestRepo) Create(_ context.Context, request *models.DownloadRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	request.ID = "req-1"
	request.Status = models.DownloadStatusPending
	request.RequestedAt = time.Now().UTC()
	return nil
}

func (f *fakeRequestRepo) FindByID(context.Context, string) (*models.DownloadRequest, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	if f.byID == nil {
		return nil, sql.ErrNoRows
	}
	return f.byID, nil
}

func (f *fakeRequestRepo) List(context.Context, models.DownloadRequestFilter) ([]models.DownloadRequest, int, error) {
	return nil, 0, nil
}

func (f *fakeRequestRepo) Approve(context.Context, string, string, *string) (*models.DownloadRequest, error) {
	f.lastStatus = models.DownloadStatusApproved
	return f.reviewed, f.reviewErr
}

func (f *fakeRequestRepo) Reject(context.Context, string, string, *string) (*models.DownloadRequest, error) {
	f.lastStatus = models.DownloadStatusRejected
	return f.reviewed, f.reviewErr
}

type fakeVideoReader struct {
	video *models.Video
	err   error
}

func (f *fakeVideoReader) FindActive(context.Context, string) (*models.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.video == nil {
		return nil, sql.ErrNoRows
	}
	return f.video, nil
}

type fakeAuditRepo struct{}

func (f *fakeAuditRepo) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

type fakeRecorder struct {
	records int
}

func (f *fakeRecorder) RecordDownload(context.Context, string, string, string) error {
	f.records++
	return nil
}

type fakeQuota struct {
	err      error
	consumed int
}

func (f *fakeQuota) Consume(context.Context, string) error {
	if f.err != nil {
		return f.err
	}
	f.consumed++
	return nil
}

type downloadHandlerDeps struct {
	requests *fakeRequestRepo
	videos   *fakeVideoReader
	quota    *fakeQuota
	recorder *fakeRecorder
	handler  *DownloadHandler
}

func newDownloadHandlerDeps(t *testing.T) downloadHandlerDeps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lesson.mp4"), []byte("mp4-bytes"), 0o644))
	store, err := storage.NewMediaStore(dir)
	require.NoError(t, err)

	deps := downloadHandlerDeps{
		requests: &fakeRequestRepo{},
		videos: &fakeVideoReader{video: &models.Video{
			ID:           "v1",
			Title:        "Algebra Basics",
			SubjectID:    "sub1",
			VideoPath:    "lesson.mp4",
			Downloadable: true,
			Active:       true,
		}},
		quota:    &fakeQuota{},
		recorder: &fakeRecorder{},
	}

	metrics := service.NewMetricsService()
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	requestSvc := service.NewRequestService(deps.requests, deps.videos, &fakeAuditRepo{}, deps.recorder, metrics, nil)
	downloadSvc := service.NewDownloadService(deps.videos, deps.requests, deps.quota, deps.recorder, store, signer, metrics, nil)
	videoHandler := NewVideoHandler(nil, downloadSvc, nil)
	deps.handler = NewDownloadHandler(requestSvc, downloadSvc, videoHandler, nil)
	return deps
}

func schoolContext(rec *httptest.ResponseRecorder, method, target, body string) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{ActorID: "school-1", Role: models.RoleSchool})
	return c
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestCreateRequestMissingVideoID(t *testing.T) {
	deps := newDownloadHandlerDeps(t)

	rec := httptest.NewRecorder()
	c := schoolContext(rec, http.MethodPost, "/downloads/requests", `{}`)

	deps.handler.CreateRequest(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequestCreated(t *testing.T) {
	deps := newDownloadHandlerDeps(t)

	rec := httptest.NewRecorder()
	c := schoolContext(rec, http.MethodPost, "/downloads/requests", `{"video_id":"v1"}`)

	deps.handler.CreateRequest(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "school-1", data["school_id"])
}

func TestCreateRequestDuplicatePending(t *testing.T) {
	deps := newDownloadHandlerDeps(t)
	deps.requests.createErr = repository.ErrDuplicatePending

	rec := httptest.NewRecorder()
	c := schoolContext(rec, http.MethodPost, "/downloads/requests", `{"video_id":"v1"}`)

	deps.handler.CreateRequest(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "DUPLICATE_PENDING", errObj["code"])
}

func TestReviewQuotaExceededLeavesRequestPending(t *testing.T) {
	deps := newDownloadHandlerDeps(t)
	deps.requests.reviewErr = repository.ErrQuotaExhausted

	rec := httptest.NewRecorder()
	c := schoolContext(rec, http.MethodPut, "/admin/downloads/requests/req-1/review", `{"approve":true}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{ActorID: "admin-1", Role: models.RoleSuperAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	deps.handler.Review(c)

	require.Equal(t, http.StatusForbidden, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "QUOTA_EXCEEDED", errObj["code"])
	assert.Zero(t, deps.recorder.records)
}

func TestReviewApprovedRecordsDownload(t *testing.T) {
	deps := newDownloadHandlerDeps(t)
	deps.requests.reviewed = &models.DownloadRequest{
		ID:       "req-1",
		SchoolID: "school-1",
		VideoID:  "v1",
		Status:   models.DownloadStatusApproved,
	}

	rec := httptest.NewRecorder()
	c := schoolContext(rec, http.MethodPut, "/admin/downloads/requests/req-1/review", `{"approve":true}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{ActorID: "admin-1", Role: models.RoleSuperAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	deps.handler.Review(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, deps.recorder.records)
	assert.Equal(t, models.DownloadStatusApproved, deps.requests.lastStatus)
}

func TestIssueLinkAndRedeemStreamsMedia(t *testing.T) {
	deps := newDownloadHandlerDeps(t)
	deps.requests.byID = &models.DownloadRequest{
		ID:       "req-1",
		SchoolID: "school-1",
		VideoID:  "v1",
		Status:   models.DownloadStatusApproved,
	}

	rec := httptest.NewRecorder()
	c := schoolContext(rec, http.MethodGet, "/downloads/requests/req-1/link", "")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	deps.handler.IssueLink(c)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	token, ok := data["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	streamRec := httptest.NewRecorder()
	sc, _ := gin.CreateTestContext(streamRec)
	sc.Request = httptest.NewRequest(http.MethodGet, "/media/"+token, nil)
	sc.Params = gin.Params{{Key: "token", Value: token}}
	// Optional bearer claims attribute the redemption but change nothing else.
	sc.Set(middleware.ContextUserKey, &models.JWTClaims{ActorID: "school-1", Role: models.RoleSchool})

	deps.handler.RedeemLink(sc)

	require.Equal(t, http.StatusOK, streamRec.Code)
	assert.Contains(t, streamRec.Header().Get("Content-Disposition"), `filename="lesson.mp4"`)
	assert.Equal(t, "mp4-bytes", streamRec.Body.String())
	assert.Zero(t, deps.quota.consumed)
}

func TestRedeemLinkTamperedToken(t *testing.T) {
	deps := newDownloadHandlerDeps(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/media/not-a-token", nil)
	c.Params = gin.Params{{Key: "token", Value: "not-a-token"}}

	deps.handler.RedeemLink(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
