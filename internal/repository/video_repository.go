package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vls-api/internal/models"
)

const videoColumns = "id, title, description, subject_id, class_level, chapter, topic, video_path, thumbnail_path, duration, file_size, downloadable, active, views, created_by, created_at, updated_at"

// VideoRepository handles persistence for the video catalog.
type VideoRepository struct {
	db *sqlx.DB
}

// NewVideoRepository creates a new repository instance.
func NewVideoRepository(db *sqlx.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// List returns active videos matching the filter with pagination metadata.
func (r *VideoRepository) List(ctx context.Context, filter models.VideoFilter) ([]models.Video, int, error) {
	base := "FROM videos WHERE active = TRUE"
	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.ClassLevel != "" {
		conditions = append(conditions, fmt.Sprintf("class_level = $%d", len(args)+1))
		args = append(args, filter.ClassLevel)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(topic) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", videoColumns, base, size, offset)
	var videos []models.Video
	if err := r.db.SelectContext(ctx, &videos, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	return videos, total, nil
}

// FindByID returns a video by id regardless of active state.
func (r *VideoRepository) FindByID(ctx context.Context, id string) (*models.Video, error) {
	query := fmt.Sprintf("SELECT %s FROM videos WHERE id = $1", videoColumns)
	var video models.Video
	if err := r.db.GetContext(ctx, &video, query, id); err != nil {
		return nil, err
	}
	return &video, nil
}

// FindActive returns a video by id only when it is active. Soft-deleted videos
// behave like missing ones on every access path.
func (r *VideoRepository) FindActive(ctx context.Context, id string) (*models.Video, error) {
	query := fmt.Sprintf("SELECT %s FROM videos WHERE id = $1 AND active = TRUE", videoColumns)
	var video models.Video
	if err := r.db.GetContext(ctx, &video, query, id); err != nil {
		return nil, err
	}
	return &video, nil
}

// Create persists a new video.
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now

	const query = `INSERT INTO videos (id, title, description, subject_id, class_level, chapter, topic, video_path, thumbnail_path, duration, file_size, downloadable, active, views, created_by, created_at, updated_at)
		VALUES (:id, :title, :description, :subject_id, :class_level, :chapter, :topic, :video_path, :thumbnail_path, :duration, :file_size, :downloadable, :active, :views, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

// Update modifies mutable video fields. View counters are managed through
// IncrementViews only.
func (r *VideoRepository) Update(ctx context.Context, video *models.Video) error {
	video.UpdatedAt = time.Now().UTC()
	const query = `UPDATE videos SET title = :title, description = :description, subject_id = :subject_id, class_level = :class_level, chapter = :chapter, topic = :topic, thumbnail_path = :thumbnail_path, duration = :duration, downloadable = :downloadable, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return nil
}

// SoftDelete marks a video inactive.
func (r *VideoRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE videos SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete video: %w", err)
	}
	return nil
}

// IncrementViews bumps the denormalized view counter.
func (r *VideoRepository) IncrementViews(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

// ListRecent returns the most recently added active videos.
func (r *VideoRepository) ListRecent(ctx context.Context, limit int) ([]models.Video, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT %s FROM videos WHERE active = TRUE ORDER BY created_at DESC LIMIT %d", videoColumns, limit)
	var videos []models.Video
	if err := r.db.SelectContext(ctx, &videos, query); err != nil {
		return nil, fmt.Errorf("list recent videos: %w", err)
	}
	return videos, nil
}

// CountActive returns the number of active videos.
func (r *VideoRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM videos WHERE active = TRUE`); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return count, nil
}

// SumFileSize returns the total bytes held by active videos.
func (r *VideoRepository) SumFileSize(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(file_size), 0) FROM videos WHERE active = TRUE`); err != nil {
		return 0, fmt.Errorf("sum video file size: %w", err)
	}
	return total, nil
}
