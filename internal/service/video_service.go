package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/jobs"
)

// JobTypeViewIncrement labels async view-counter jobs.
const JobTypeViewIncrement = "video.view_increment"

type videoRepository interface {
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, int, error)
	FindByID(ctx context.Context, id string) (*models.Video, error)
	FindActive(ctx context.Context, id string) (*models.Video, error)
	Create(ctx context.Context, video *models.Video) error
	Update(ctx context.Context, video *models.Video) error
	SoftDelete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]models.Video, error)
}

type videoSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	AdjustVideoCount(ctx context.Context, id string, delta int) error
}

type usageAppender interface {
	Create(ctx context.Context, report *models.UsageReport) error
}

type videoMediaStore interface {
	Delete(filename string) error
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// VideoService manages the catalog and the view-side of consumption. The view
// counter is derived data and is incremented asynchronously; the usage event
// itself is written inline.
type VideoService struct {
	videos    videoRepository
	subjects  videoSubjectRepository
	reports   usageAppender
	audit     requestAuditRepository
	store     videoMediaStore
	queue     jobQueue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVideoService constructs a VideoService instance.
func NewVideoService(videos videoRepository, subjects videoSubjectRepository, reports usageAppender, audit requestAuditRepository, store videoMediaStore, queue jobQueue, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *VideoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VideoService{videos: videos, subjects: subjects, reports: reports, audit: audit, store: store, queue: queue, metrics: metrics, validator: validate, logger: logger}
}

// List returns active videos matching the filter.
func (s *VideoService) List(ctx context.Context, filter models.VideoFilter) ([]models.Video, *models.Pagination, error) {
	videos, total, err := s.videos.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list videos")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return videos, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Detail returns an active video for a school viewer, records a view usage
// event and enqueues the counter increment.
func (s *VideoService) Detail(ctx context.Context, videoID, schoolID string) (*models.Video, error) {
	video, err := s.videos.FindActive(ctx, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}

	if schoolID != "" {
		report := &models.UsageReport{
			SchoolID:  schoolID,
			SubjectID: &video.SubjectID,
			VideoID:   &video.ID,
			Action:    models.UsageActionView,
		}
		if err := s.reports.Create(ctx, report); err != nil {
			s.logger.Warn("failed to record view usage", zap.String("video_id", video.ID), zap.Error(err))
		} else {
			s.metrics.RecordUsageEvent(models.UsageActionView)
		}

		if s.queue != nil {
			if err := s.queue.Enqueue(jobs.Job{
				ID:      uuid.NewString(),
				Type:    JobTypeViewIncrement,
				Payload: video.ID,
			}); err != nil {
				s.logger.Warn("failed to enqueue view increment", zap.String("video_id", video.ID), zap.Error(err))
			}
		}
	}

	return video, nil
}

// Get returns a video by id for admin use, including inactive ones.
func (s *VideoService) Get(ctx context.Context, id string) (*models.Video, error) {
	video, err := s.videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}
	return video, nil
}

// Recent returns the newest active videos.
func (s *VideoService) Recent(ctx context.Context, limit int) ([]models.Video, error) {
	videos, err := s.videos.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent videos")
	}
	return videos, nil
}

// Create registers a new video and bumps the subject's video counter.
func (s *VideoService) Create(ctx context.Context, adminID string, req models.CreateVideoRequest) (*models.Video, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid video payload")
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	video := &models.Video{
		Title:         req.Title,
		Description:   req.Description,
		SubjectID:     req.SubjectID,
		ClassLevel:    req.ClassLevel,
		Chapter:       req.Chapter,
		Topic:         req.Topic,
		VideoPath:     req.VideoPath,
		ThumbnailPath: req.ThumbnailPath,
		Duration:      req.Duration,
		FileSize:      req.FileSize,
		Downloadable:  req.Downloadable,
		Active:        true,
		CreatedBy:     &adminID,
	}
	if err := s.videos.Create(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create video")
	}

	if err := s.subjects.AdjustVideoCount(ctx, video.SubjectID, 1); err != nil {
		s.logger.Warn("failed to bump subject video count", zap.String("subject_id", video.SubjectID), zap.Error(err))
	}

	s.recordAudit(ctx, adminID, models.AuditActionVideoCreate, video.ID)
	return video, nil
}

// Update edits mutable fields of a video.
func (s *VideoService) Update(ctx context.Context, adminID, id string, req models.UpdateVideoRequest) (*models.Video, error) {
	video, err := s.videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}

	oldSubject := video.SubjectID
	applyVideoUpdate(video, req)

	if video.SubjectID != oldSubject {
		if _, err := s.subjects.FindByID(ctx, video.SubjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "subject does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
	}

	if err := s.videos.Update(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update video")
	}

	if video.SubjectID != oldSubject {
		if err := s.subjects.AdjustVideoCount(ctx, oldSubject, -1); err != nil {
			s.logger.Warn("failed to drop old subject video count", zap.String("subject_id", oldSubject), zap.Error(err))
		}
		if err := s.subjects.AdjustVideoCount(ctx, video.SubjectID, 1); err != nil {
			s.logger.Warn("failed to bump subject video count", zap.String("subject_id", video.SubjectID), zap.Error(err))
		}
	}

	s.recordAudit(ctx, adminID, models.AuditActionVideoUpdate, video.ID)
	return video, nil
}

// Delete soft-deletes a video, removes its media files and drops the subject
// counter. The usage trail referencing the video is left intact.
func (s *VideoService) Delete(ctx context.Context, adminID, id string) error {
	video, err := s.videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}

	if err := s.videos.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete video")
	}

	if video.VideoPath != "" {
		if err := s.store.Delete(video.VideoPath); err != nil {
			s.logger.Warn("failed to remove media file", zap.String("path", video.VideoPath), zap.Error(err))
		}
	}
	if video.ThumbnailPath != "" {
		if err := s.store.Delete(video.ThumbnailPath); err != nil {
			s.logger.Warn("failed to remove thumbnail", zap.String("path", video.ThumbnailPath), zap.Error(err))
		}
	}

	if err := s.subjects.AdjustVideoCount(ctx, video.SubjectID, -1); err != nil {
		s.logger.Warn("failed to drop subject video count", zap.String("subject_id", video.SubjectID), zap.Error(err))
	}

	s.recordAudit(ctx, adminID, models.AuditActionVideoDelete, id)
	return nil
}

// HandleViewIncrement is the jobs queue handler for async counter bumps.
func (s *VideoService) HandleViewIncrement(ctx context.Context, job jobs.Job) error {
	videoID, ok := job.Payload.(string)
	if !ok || videoID == "" {
		return fmt.Errorf("view increment job %s has no video id", job.ID)
	}
	return s.videos.IncrementViews(ctx, videoID)
}

func (s *VideoService) recordAudit(ctx context.Context, adminID, action, resourceID string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &adminID,
		Action:     action,
		Resource:   "video",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record video audit log", zap.Error(err))
	}
}

func applyVideoUpdate(video *models.Video, req models.UpdateVideoRequest) {
	if req.Title != nil {
		video.Title = *req.Title
	}
	if req.Description != nil {
		video.Description = *req.Description
	}
	if req.SubjectID != nil {
		video.SubjectID = *req.SubjectID
	}
	if req.ClassLevel != nil {
		video.ClassLevel = *req.ClassLevel
	}
	if req.Chapter != nil {
		video.Chapter = *req.Chapter
	}
	if req.Topic != nil {
		video.Topic = *req.Topic
	}
	if req.ThumbnailPath != nil {
		video.ThumbnailPath = *req.ThumbnailPath
	}
	if req.Duration != nil {
		video.Duration = *req.Duration
	}
	if req.Downloadable != nil {
		video.Downloadable = *req.Downloadable
	}
	if req.Active != nil {
		video.Active = *req.Active
	}
}
