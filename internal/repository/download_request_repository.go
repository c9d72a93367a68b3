package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/vls-api/internal/models"
)

const pgUniqueViolation = "23505"

const downloadRequestColumns = "id, school_id, video_id, status, requested_at, reviewed_at, reviewed_by, reason"

// DownloadRequestRepository handles persistence for the approval workflow.
type DownloadRequestRepository struct {
	db *sqlx.DB
}

// NewDownloadRequestRepository creates a new repository instance.
func NewDownloadRequestRepository(db *sqlx.DB) *DownloadRequestRepository {
	return &DownloadRequestRepository{db: db}
}

// Create inserts a new pending request. The partial unique index on
// (school_id, video_id) WHERE status = 'pending' guarantees at most one
// outstanding request per pair even under concurrent creates; the unique
// violation is mapped to ErrDuplicatePending.
func (r *DownloadRequestRepository) Create(ctx context.Context, request *models.DownloadRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.DownloadStatusPending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}

	const query = `INSERT INTO download_requests (id, school_id, video_id, status, requested_at) VALUES (:id, :school_id, :video_id, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create download request: %w", err)
	}
	return nil
}

// FindByID returns a request by id.
func (r *DownloadRequestRepository) FindByID(ctx context.Context, id string) (*models.DownloadRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM download_requests WHERE id = $1", downloadRequestColumns)
	var request models.DownloadRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter, newest first, joined with video
// and school display names.
func (r *DownloadRequestRepository) List(ctx context.Context, filter models.DownloadRequestFilter) ([]models.DownloadRequest, int, error) {
	base := `FROM download_requests dr JOIN videos v ON v.id = dr.video_id JOIN schools s ON s.id = dr.school_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("dr.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("dr.status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT dr.id, dr.school_id, dr.video_id, dr.status, dr.requested_at, dr.reviewed_at, dr.reviewed_by, dr.reason, v.title AS video_title, s.name AS school_name %s ORDER BY dr.requested_at DESC LIMIT %d OFFSET %d`, base, size, offset)
	var requests []models.DownloadRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list download requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count download requests: %w", err)
	}

	return requests, total, nil
}

// Approve flips a pending request to approved and consumes one quota unit for
// the owning school inside a single transaction. The request row is locked
// first; if the conditional quota increment matches no row the transaction is
// rolled back, the request stays pending, and ErrQuotaExhausted is returned.
func (r *DownloadRequestRepository) Approve(ctx context.Context, id, reviewerID string, reason *string) (*models.DownloadRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf("SELECT %s FROM download_requests WHERE id = $1 FOR UPDATE", downloadRequestColumns)
	var request models.DownloadRequest
	if err := tx.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	if request.Status != models.DownloadStatusPending {
		return nil, ErrNotPending
	}

	res, err := tx.ExecContext(ctx, `UPDATE schools SET quota_used = quota_used + 1, updated_at = $2 WHERE id = $1 AND active = TRUE AND quota_used < quota_allowed`, request.SchoolID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("consume quota for approval: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("consume quota rows: %w", err)
	}
	if rows == 0 {
		return nil, ErrQuotaExhausted
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE download_requests SET status = $2, reviewed_at = $3, reviewed_by = $4, reason = $5 WHERE id = $1`, id, models.DownloadStatusApproved, now, reviewerID, reason); err != nil {
		return nil, fmt.Errorf("approve download request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve tx: %w", err)
	}

	request.Status = models.DownloadStatusApproved
	request.ReviewedAt = &now
	request.ReviewedBy = &reviewerID
	request.Reason = reason
	return &request, nil
}

// Reject flips a pending request to rejected with no ledger mutation. The
// status guard in the WHERE clause makes concurrent reviews race-safe.
func (r *DownloadRequestRepository) Reject(ctx context.Context, id, reviewerID string, reason *string) (*models.DownloadRequest, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE download_requests SET status = $2, reviewed_at = $3, reviewed_by = $4, reason = $5 WHERE id = $1 AND status = $6`,
		id, models.DownloadStatusRejected, now, reviewerID, reason, models.DownloadStatusPending)
	if err != nil {
		return nil, fmt.Errorf("reject download request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reject download request rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, sql.ErrNoRows
			}
			return nil, err
		}
		return nil, ErrNotPending
	}

	request, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return request, nil
}

// CountByStatus returns the number of requests in the given state.
func (r *DownloadRequestRepository) CountByStatus(ctx context.Context, status models.DownloadRequestStatus) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM download_requests WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("count download requests: %w", err)
	}
	return count, nil
}
