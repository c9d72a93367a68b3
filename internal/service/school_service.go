package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	FindByEmail(ctx context.Context, email string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	SoftDelete(ctx context.Context, id string) error
}

// SchoolService manages school accounts. Quota mutations live in QuotaService;
// this service only seeds the initial allowance.
type SchoolService struct {
	schools      schoolRepository
	audit        requestAuditRepository
	validator    *validator.Validate
	logger       *zap.Logger
	defaultQuota int
}

// NewSchoolService constructs a SchoolService instance.
func NewSchoolService(schools schoolRepository, audit requestAuditRepository, validate *validator.Validate, logger *zap.Logger, defaultQuota int) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if defaultQuota <= 0 {
		defaultQuota = 50
	}
	return &SchoolService{schools: schools, audit: audit, validator: validate, logger: logger, defaultQuota: defaultQuota}
}

// List returns schools matching the filter with pagination.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	schools, total, err := s.schools.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return schools, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a school by id.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	school, err := s.schools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// Create onboards a school with a hashed password and the default allowance.
func (s *SchoolService) Create(ctx context.Context, adminID string, req models.CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	if _, err := s.schools.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	quota := s.defaultQuota
	if req.QuotaAllowed != nil {
		if *req.QuotaAllowed < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "allowance must be non-negative")
		}
		quota = *req.QuotaAllowed
	}

	school := &models.School{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Active:       true,
		SubStartDate: req.SubStartDate,
		SubEndDate:   req.SubEndDate,
		SubActive:    true,
		QuotaAllowed: quota,
	}
	if err := s.schools.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}

	s.recordAudit(ctx, adminID, models.AuditActionSchoolCreate, school.ID)
	return school, nil
}

// Update edits mutable school fields.
func (s *SchoolService) Update(ctx context.Context, adminID, id string, req models.UpdateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	school, err := s.schools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	if req.Name != nil {
		school.Name = *req.Name
	}
	if req.Email != nil {
		school.Email = *req.Email
	}
	if req.Active != nil {
		school.Active = *req.Active
	}
	if req.SubStartDate != nil {
		school.SubStartDate = req.SubStartDate
	}
	if req.SubEndDate != nil {
		school.SubEndDate = req.SubEndDate
	}
	if req.SubActive != nil {
		school.SubActive = *req.SubActive
	}

	if err := s.schools.Update(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}

	s.recordAudit(ctx, adminID, models.AuditActionSchoolUpdate, school.ID)
	return school, nil
}

// Delete soft-deletes a school. Its request history and usage trail remain.
func (s *SchoolService) Delete(ctx context.Context, adminID, id string) error {
	if _, err := s.schools.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	if err := s.schools.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete school")
	}

	s.recordAudit(ctx, adminID, models.AuditActionSchoolDelete, id)
	return nil
}

func (s *SchoolService) recordAudit(ctx context.Context, adminID, action, resourceID string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &adminID,
		Action:     action,
		Resource:   "school",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record school audit log", zap.Error(err))
	}
}
