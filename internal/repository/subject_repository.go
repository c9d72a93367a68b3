package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vls-api/internal/models"
)

const subjectColumns = "id, name, description, classes, video_count, thumbnail_path, active, created_by, created_at, updated_at"

// SubjectRepository handles persistence for curriculum subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListActive returns active subjects ordered by name.
func (r *SubjectRepository) ListActive(ctx context.Context) ([]models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE active = TRUE ORDER BY name ASC", subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, name, description, classes, video_count, thumbnail_path, active, created_by, created_at, updated_at)
		VALUES (:id, :name, :description, :classes, :video_count, :thumbnail_path, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies mutable subject fields.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, description = :description, classes = :classes, thumbnail_path = :thumbnail_path, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// SoftDelete marks a subject inactive.
func (r *SubjectRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE subjects SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete subject: %w", err)
	}
	return nil
}

// AdjustVideoCount shifts the denormalized counter by delta, clamping at zero.
func (r *SubjectRepository) AdjustVideoCount(ctx context.Context, id string, delta int) error {
	const query = `UPDATE subjects SET video_count = GREATEST(video_count + $2, 0), updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("adjust subject video count: %w", err)
	}
	return nil
}

// CountActive returns the number of active subjects.
func (r *SubjectRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM subjects WHERE active = TRUE`); err != nil {
		return 0, fmt.Errorf("count subjects: %w", err)
	}
	return count, nil
}
