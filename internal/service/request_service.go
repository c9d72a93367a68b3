package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/repository"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type downloadRequestRepository interface {
	Create(ctx context.Context, request *models.DownloadRequest) error
	FindByID(ctx context.Context, id string) (*models.DownloadRequest, error)
	List(ctx context.Context, filter models.DownloadRequestFilter) ([]models.DownloadRequest, int, error)
	Approve(ctx context.Context, id, reviewerID string, reason *string) (*models.DownloadRequest, error)
	Reject(ctx context.Context, id, reviewerID string, reason *string) (*models.DownloadRequest, error)
}

type requestVideoRepository interface {
	FindActive(ctx context.Context, id string) (*models.Video, error)
}

type requestAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type downloadRecorder interface {
	RecordDownload(ctx context.Context, schoolID, videoID, subjectID string) error
}

// ReviewDecision is an operator's verdict on a pending request.
type ReviewDecision struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason"`
}

// RequestService drives the three-state download approval workflow.
type RequestService struct {
	requests downloadRequestRepository
	videos   requestVideoRepository
	audit    requestAuditRepository
	reports  downloadRecorder
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewRequestService constructs a RequestService instance.
func NewRequestService(requests downloadRequestRepository, videos requestVideoRepository, audit requestAuditRepository, reports downloadRecorder, metrics *MetricsService, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{requests: requests, videos: videos, audit: audit, reports: reports, metrics: metrics, logger: logger}
}

// Create opens a pending request for the school. The video must be active and
// downloadable, and at most one pending request per (school, video) pair may
// exist; the database index enforces that even under concurrent creates.
func (s *RequestService) Create(ctx context.Context, schoolID, videoID string) (*models.DownloadRequest, error) {
	video, err := s.videos.FindActive(ctx, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}
	if !video.Downloadable {
		return nil, appErrors.Clone(appErrors.ErrNotDownloadable, "")
	}

	request := &models.DownloadRequest{SchoolID: schoolID, VideoID: videoID}
	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, appErrors.Clone(appErrors.ErrDuplicatePending, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	request.VideoTitle = video.Title

	s.logger.Info("download request created",
		zap.String("request_id", request.ID),
		zap.String("school_id", schoolID),
		zap.String("video_id", videoID))
	return request, nil
}

// Get returns one request. Schools may only see their own.
func (s *RequestService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.DownloadRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "download request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if claims.Role == models.RoleSchool && request.SchoolID != claims.ActorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another school")
	}
	return request, nil
}

// List returns requests matching the filter with pagination. Handlers scope
// the filter to the calling school before reaching here.
func (s *RequestService) List(ctx context.Context, filter models.DownloadRequestFilter) ([]models.DownloadRequest, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request status %q", filter.Status))
	}

	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Review resolves a pending request. Approval consumes one quota unit inside
// the repository transaction and appends exactly one download usage event;
// rejection touches nothing but the request row. Terminal requests are
// immutable.
func (s *RequestService) Review(ctx context.Context, id, reviewerID string, decision ReviewDecision) (*models.DownloadRequest, error) {
	var request *models.DownloadRequest
	var err error
	if decision.Approve {
		request, err = s.requests.Approve(ctx, id, reviewerID, decision.Reason)
	} else {
		request, err = s.requests.Reject(ctx, id, reviewerID, decision.Reason)
	}
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "download request not found")
		case errors.Is(err, repository.ErrNotPending):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
		case errors.Is(err, repository.ErrQuotaExhausted):
			s.metrics.RecordQuotaRejection()
			return nil, appErrors.Clone(appErrors.ErrQuotaExceeded, "school quota exhausted, request left pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review request")
	}

	if decision.Approve {
		s.metrics.RecordDownload("approval")
		subjectID := ""
		if video, err := s.videos.FindActive(ctx, request.VideoID); err == nil {
			subjectID = video.SubjectID
		}
		if err := s.reports.RecordDownload(ctx, request.SchoolID, request.VideoID, subjectID); err != nil {
			s.logger.Error("failed to record download usage after approval",
				zap.String("request_id", request.ID), zap.Error(err))
		}
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &reviewerID,
		Action:     models.AuditActionRequestReview,
		Resource:   "download_request",
		ResourceID: &request.ID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, request.Status)),
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}

	s.logger.Info("download request reviewed",
		zap.String("request_id", request.ID),
		zap.String("reviewer_id", reviewerID),
		zap.String("status", string(request.Status)),
		zap.Time("reviewed_at", valueOrNow(request.ReviewedAt)))
	return request, nil
}

func valueOrNow(ts *time.Time) time.Time {
	if ts != nil {
		return *ts
	}
	return time.Now().UTC()
}
