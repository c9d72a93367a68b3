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

// UsageReportRepository appends and reads the consumption audit trail. Rows
// are never updated or deleted.
type UsageReportRepository struct {
	db *sqlx.DB
}

// NewUsageReportRepository creates a new repository instance.
func NewUsageReportRepository(db *sqlx.DB) *UsageReportRepository {
	return &UsageReportRepository{db: db}
}

// Create appends a usage event.
func (r *UsageReportRepository) Create(ctx context.Context, report *models.UsageReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.OccurredAt.IsZero() {
		report.OccurredAt = time.Now().UTC()
	}

	const query = `INSERT INTO usage_reports (id, school_id, subject_id, video_id, action, duration, occurred_at, metadata) VALUES (:id, :school_id, :subject_id, :video_id, :action, :duration, :occurred_at, :metadata)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create usage report: %w", err)
	}
	return nil
}

// List returns usage events matching the filter, newest first, joined with
// subject and video display names. Missing window bounds widen to epoch/now.
func (r *UsageReportRepository) List(ctx context.Context, filter models.UsageFilter) ([]models.UsageReport, int, error) {
	base := `FROM usage_reports ur LEFT JOIN subjects sub ON sub.id = ur.subject_id LEFT JOIN videos v ON v.id = ur.video_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("ur.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("ur.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("ur.action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("ur.occurred_at >= $%d", len(args)+1))
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("ur.occurred_at <= $%d", len(args)+1))
		args = append(args, filter.To.UTC())
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ur.id, ur.school_id, ur.subject_id, ur.video_id, ur.action, ur.duration, ur.occurred_at, ur.metadata, COALESCE(sub.name, '') AS subject_name, COALESCE(v.title, '') AS video_title %s ORDER BY ur.occurred_at DESC LIMIT %d OFFSET %d`, base, size, offset)
	var reports []models.UsageReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list usage reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count usage reports: %w", err)
	}

	return reports, total, nil
}

// SubjectWise aggregates play activity per subject for one school within an
// optional time window.
func (r *UsageReportRepository) SubjectWise(ctx context.Context, schoolID string, from, to *time.Time) ([]models.SubjectUsage, error) {
	base := `FROM usage_reports ur JOIN subjects sub ON sub.id = ur.subject_id WHERE ur.school_id = $1 AND ur.action = $2`
	args := []interface{}{schoolID, models.UsageActionPlay}

	if from != nil {
		base += fmt.Sprintf(" AND ur.occurred_at >= $%d", len(args)+1)
		args = append(args, from.UTC())
	}
	if to != nil {
		base += fmt.Sprintf(" AND ur.occurred_at <= $%d", len(args)+1)
		args = append(args, to.UTC())
	}

	query := fmt.Sprintf(`SELECT ur.subject_id, sub.name AS subject_name, COUNT(*) AS videos_watched, COALESCE(SUM(ur.duration), 0) AS total_duration %s GROUP BY ur.subject_id, sub.name ORDER BY videos_watched DESC`, base)
	var usage []models.SubjectUsage
	if err := r.db.SelectContext(ctx, &usage, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate subject usage: %w", err)
	}
	return usage, nil
}

// CountByActionSince counts a school's events of one action kind after the
// given instant.
func (r *UsageReportRepository) CountByActionSince(ctx context.Context, schoolID string, action models.UsageAction, since time.Time) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM usage_reports WHERE school_id = $1 AND action = $2 AND occurred_at >= $3`
	if err := r.db.GetContext(ctx, &count, query, schoolID, action, since.UTC()); err != nil {
		return 0, fmt.Errorf("count usage reports: %w", err)
	}
	return count, nil
}
