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

const schoolColumns = "id, name, email, password_hash, active, sub_start_date, sub_end_date, sub_active, quota_allowed, quota_used, created_at, updated_at"

// SchoolRepository handles persistence for schools and their quota ledger.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository creates a new repository instance.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching filters with pagination metadata.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	base := "FROM schools WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"email":      true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", schoolColumns, base, sortBy, order, size, offset)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}

	return schools, total, nil
}

// FindByID returns a school by id.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := fmt.Sprintf("SELECT %s FROM schools WHERE id = $1", schoolColumns)
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// FindByEmail returns a school by email address.
func (r *SchoolRepository) FindByEmail(ctx context.Context, email string) (*models.School, error) {
	query := fmt.Sprintf("SELECT %s FROM schools WHERE LOWER(email) = LOWER($1) LIMIT 1", schoolColumns)
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, email); err != nil {
		return nil, err
	}
	return &school, nil
}

// Create persists a new school.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if school.CreatedAt.IsZero() {
		school.CreatedAt = now
	}
	school.UpdatedAt = now

	const query = `INSERT INTO schools (id, name, email, password_hash, active, sub_start_date, sub_end_date, sub_active, quota_allowed, quota_used, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :active, :sub_start_date, :sub_end_date, :sub_active, :quota_allowed, :quota_used, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update modifies mutable school fields. Quota counters are managed through
// ConsumeQuota and SetQuotaAllowance only.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, email = :email, active = :active, sub_start_date = :sub_start_date, sub_end_date = :sub_end_date, sub_active = :sub_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// SoftDelete marks a school inactive, excluding it from all access checks.
func (r *SchoolRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE schools SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete school: %w", err)
	}
	return nil
}

// ConsumeQuota atomically increments quota_used by one iff the school is
// active and below its allowance. The conditional update is the single
// serialization point for both download paths: concurrent consumers can never
// drive quota_used past quota_allowed.
func (r *SchoolRepository) ConsumeQuota(ctx context.Context, id string) error {
	const query = `UPDATE schools SET quota_used = quota_used + 1, updated_at = $2 WHERE id = $1 AND active = TRUE AND quota_used < quota_allowed`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("consume quota: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume quota rows: %w", err)
	}
	if rows == 0 {
		return ErrQuotaExhausted
	}
	return nil
}

// SetQuotaAllowance adjusts the allowance, refusing to drop below the
// consumed count so quota_used <= quota_allowed always holds.
func (r *SchoolRepository) SetQuotaAllowance(ctx context.Context, id string, allowed int) error {
	const query = `UPDATE schools SET quota_allowed = $2, updated_at = $3 WHERE id = $1 AND quota_used <= $2`
	res, err := r.db.ExecContext(ctx, query, id, allowed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set quota allowance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set quota allowance rows: %w", err)
	}
	if rows == 0 {
		return ErrAllowanceBelowUsage
	}
	return nil
}

// CountActive returns the number of active schools.
func (r *SchoolRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM schools WHERE active = TRUE`); err != nil {
		return 0, fmt.Errorf("count schools: %w", err)
	}
	return count, nil
}
