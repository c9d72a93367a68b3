package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type dashboardSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
	CountActive(ctx context.Context) (int, error)
}

type dashboardVideoRepository interface {
	CountActive(ctx context.Context) (int, error)
	SumFileSize(ctx context.Context) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]models.Video, error)
}

type dashboardSubjectRepository interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardRequestRepository interface {
	CountByStatus(ctx context.Context, status models.DownloadRequestStatus) (int, error)
}

type dashboardUsageRepository interface {
	CountByActionSince(ctx context.Context, schoolID string, action models.UsageAction, since time.Time) (int, error)
	SubjectWise(ctx context.Context, schoolID string, from, to *time.Time) ([]models.SubjectUsage, error)
}

// DashboardService assembles read-only overviews, cached in Redis when the
// cache layer is enabled.
type DashboardService struct {
	schools  dashboardSchoolRepository
	videos   dashboardVideoRepository
	subjects dashboardSubjectRepository
	requests dashboardRequestRepository
	usage    dashboardUsageRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(schools dashboardSchoolRepository, videos dashboardVideoRepository, subjects dashboardSubjectRepository, requests dashboardRequestRepository, usage dashboardUsageRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{schools: schools, videos: videos, subjects: subjects, requests: requests, usage: usage, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// SchoolDashboard returns a school's consumption overview.
func (s *DashboardService) SchoolDashboard(ctx context.Context, schoolID string) (*models.SchoolDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:school:%s", schoolID)
	var cached models.SchoolDashboard
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	weeklyViews, err := s.usage.CountByActionSince(ctx, schoolID, models.UsageActionView, weekAgo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count views")
	}

	subjectUsage, err := s.usage.SubjectWise(ctx, schoolID, &weekAgo, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate usage")
	}

	recent, err := s.videos.ListRecent(ctx, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent videos")
	}

	dashboard := &models.SchoolDashboard{
		SchoolID:   school.ID,
		SchoolName: school.Name,
		Quota: models.QuotaStatus{
			Allowed:   school.QuotaAllowed,
			Used:      school.QuotaUsed,
			Remaining: school.QuotaRemaining(),
		},
		WeeklyViews:  weeklyViews,
		SubjectUsage: subjectUsage,
		RecentVideos: recent,
		GeneratedAt:  time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, cacheKey, dashboard, s.cacheTTL); err != nil {
		s.logger.Debug("school dashboard cache write failed", zap.Error(err))
	}
	return dashboard, nil
}

// AdminDashboard returns platform-wide counters for operators.
func (s *DashboardService) AdminDashboard(ctx context.Context) (*models.AdminDashboard, error) {
	const cacheKey = "dashboard:admin"
	var cached models.AdminDashboard
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	schoolCount, err := s.schools.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count schools")
	}
	subjectCount, err := s.subjects.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subjects")
	}
	videoCount, err := s.videos.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count videos")
	}
	pending, err := s.requests.CountByStatus(ctx, models.DownloadStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending requests")
	}
	approved, err := s.requests.CountByStatus(ctx, models.DownloadStatusApproved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved requests")
	}
	storage, err := s.videos.SumFileSize(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum storage")
	}

	dashboard := &models.AdminDashboard{
		ActiveSchools:    schoolCount,
		ActiveSubjects:   subjectCount,
		ActiveVideos:     videoCount,
		PendingRequests:  pending,
		ApprovedRequests: approved,
		StorageUsed:      storage,
		StorageUsedHuman: humanizeBytes(storage),
		GeneratedAt:      time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, cacheKey, dashboard, s.cacheTTL); err != nil {
		s.logger.Debug("admin dashboard cache write failed", zap.Error(err))
	}
	return dashboard, nil
}

// InvalidateSchool drops the cached dashboard for one school.
func (s *DashboardService) InvalidateSchool(ctx context.Context, schoolID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dashboard:school:%s", schoolID)); err != nil {
		s.logger.Debug("dashboard invalidate failed", zap.Error(err))
	}
}

func humanizeBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
