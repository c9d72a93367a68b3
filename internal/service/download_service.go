package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type mediaStore interface {
	Exists(filename string) bool
	Open(filename string) (*os.File, error)
	Size(filename string) (int64, error)
}

type urlSigner interface {
	Generate(videoID, relPath string) (string, time.Time, error)
	Parse(token string) (videoID, relPath string, expiresAt time.Time, err error)
}

type quotaConsumer interface {
	Consume(ctx context.Context, schoolID string) error
}

type downloadRequestReader interface {
	FindByID(ctx context.Context, id string) (*models.DownloadRequest, error)
}

// DownloadPayload carries an open media stream to the handler, which is
// responsible for closing it.
type DownloadPayload struct {
	Video    *models.Video
	File     *os.File
	Size     int64
	Filename string
}

// SignedLink is a redeemable media token for an approved request.
type SignedLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DownloadService gates media access behind the quota ledger. The direct path
// charges the ledger; the approved-request path rides the charge taken at
// approval time.
type DownloadService struct {
	videos   requestVideoRepository
	requests downloadRequestReader
	quota    quotaConsumer
	reports  downloadRecorder
	store    mediaStore
	signer   urlSigner
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDownloadService constructs a DownloadService instance.
func NewDownloadService(videos requestVideoRepository, requests downloadRequestReader, quota quotaConsumer, reports downloadRecorder, store mediaStore, signer urlSigner, metrics *MetricsService, logger *zap.Logger) *DownloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadService{videos: videos, requests: requests, quota: quota, reports: reports, store: store, signer: signer, metrics: metrics, logger: logger}
}

// Direct performs the quota-gated direct download. Preconditions are checked
// in a fixed order: video exists and is active, video is downloadable, quota
// is available, file is present in storage. A missing file after the quota
// charge is reported as not found without refunding the ledger; refunds would
// reopen the race the conditional update closes.
func (s *DownloadService) Direct(ctx context.Context, schoolID, videoID string) (*DownloadPayload, error) {
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

	if err := s.quota.Consume(ctx, schoolID); err != nil {
		return nil, err
	}

	if !s.store.Exists(video.VideoPath) {
		s.logger.Error("media file missing after quota charge",
			zap.String("video_id", video.ID),
			zap.String("school_id", schoolID),
			zap.String("path", video.VideoPath))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "video file missing")
	}

	s.metrics.RecordDownload("direct")
	if err := s.reports.RecordDownload(ctx, schoolID, video.ID, video.SubjectID); err != nil {
		s.logger.Error("failed to record download usage",
			zap.String("video_id", video.ID), zap.Error(err))
	}

	return s.open(video)
}

// IssueLink returns a signed, TTL-bound token for an approved request. No
// additional quota is charged; the approval already consumed one unit.
func (s *DownloadService) IssueLink(ctx context.Context, schoolID, requestID string) (*SignedLink, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "download request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another school")
	}
	if request.Status != models.DownloadStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request is not approved")
	}

	video, err := s.videos.FindActive(ctx, request.VideoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}

	token, expiresAt, err := s.signer.Generate(video.ID, video.VideoPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign media token")
	}
	return &SignedLink{Token: token, ExpiresAt: expiresAt}, nil
}

// Redeem validates a signed token and opens the referenced media stream.
func (s *DownloadService) Redeem(ctx context.Context, token string) (*DownloadPayload, error) {
	videoID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid media token")
	}

	video, err := s.videos.FindActive(ctx, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}
	if video.VideoPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "media token is stale")
	}
	if !s.store.Exists(video.VideoPath) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "video file missing")
	}

	return s.open(video)
}

func (s *DownloadService) open(video *models.Video) (*DownloadPayload, error) {
	size, err := s.store.Size(video.VideoPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFault.Code, appErrors.ErrStorageFault.Status, "failed to stat media file")
	}
	file, err := s.store.Open(video.VideoPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFault.Code, appErrors.ErrStorageFault.Status, "failed to open media file")
	}
	return &DownloadPayload{
		Video:    video,
		File:     file,
		Size:     size,
		Filename: filepath.Base(video.VideoPath),
	}, nil
}
