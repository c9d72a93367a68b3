package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/repository"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type quotaSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
	ConsumeQuota(ctx context.Context, id string) error
	SetQuotaAllowance(ctx context.Context, id string, allowed int) error
}

// QuotaService is the single entry point for ledger mutations. Every
// quota-consuming download, whether direct or via an approved request, passes
// through Consume.
type QuotaService struct {
	schools quotaSchoolRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewQuotaService constructs a QuotaService instance.
func NewQuotaService(schools quotaSchoolRepository, metrics *MetricsService, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{schools: schools, metrics: metrics, logger: logger}
}

// Consume charges one download unit against the school. The increment is a
// single conditional update, so concurrent consumers serialize at the database
// and the ledger can never exceed its allowance.
func (s *QuotaService) Consume(ctx context.Context, schoolID string) error {
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if !school.Active {
		return appErrors.Clone(appErrors.ErrInactiveAccount, "school account is inactive")
	}

	if err := s.schools.ConsumeQuota(ctx, schoolID); err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			s.metrics.RecordQuotaRejection()
			return appErrors.Clone(appErrors.ErrQuotaExceeded, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume quota")
	}

	s.logger.Debug("quota consumed", zap.String("school_id", schoolID))
	return nil
}

// Status returns the school's current ledger state.
func (s *QuotaService) Status(ctx context.Context, schoolID string) (*models.QuotaStatus, error) {
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return &models.QuotaStatus{
		Allowed:   school.QuotaAllowed,
		Used:      school.QuotaUsed,
		Remaining: school.QuotaRemaining(),
	}, nil
}

// SetAllowance adjusts a school's allowance. Dropping below the consumed count
// is refused.
func (s *QuotaService) SetAllowance(ctx context.Context, schoolID string, allowed int) (*models.QuotaStatus, error) {
	if allowed < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "allowance must be non-negative")
	}

	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	if err := s.schools.SetQuotaAllowance(ctx, schoolID, allowed); err != nil {
		if errors.Is(err, repository.ErrAllowanceBelowUsage) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "allowance cannot drop below consumed quota")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set allowance")
	}

	return s.Status(ctx, schoolID)
}
