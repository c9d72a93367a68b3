package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type authSchoolRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.School, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type authAdminRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.SuperAdmin, error)
	FindByID(ctx context.Context, id string) (*models.SuperAdmin, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// AuthService authenticates schools and super admins with a shared token
// format. The Role claim decides which account table a token resolves to.
type AuthService struct {
	schools   authSchoolRepository
	admins    authAdminRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(schools authSchoolRepository, admins authAdminRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiry <= 0 {
		config.Expiry = 24 * time.Hour
	}
	return &AuthService{schools: schools, admins: admins, validator: validate, logger: logger, config: config}
}

// LoginSchool authenticates a school account and returns an issued token.
func (s *AuthService) LoginSchool(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	school, err := s.schools.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}

	if !school.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "school account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(school.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	token, err := s.generateAccessToken(school.ID, models.RoleSchool, school.Email, school.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		IssuedAt:    time.Now().UTC(),
		Actor: models.ActorInfo{
			ID:    school.ID,
			Email: school.Email,
			Name:  school.Name,
			Role:  models.RoleSchool,
		},
	}, nil
}

// LoginAdmin authenticates a super admin and returns an issued token.
func (s *AuthService) LoginAdmin(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	admin, err := s.admins.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch admin")
	}

	if !admin.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "admin account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	token, err := s.generateAccessToken(admin.ID, models.RoleSuperAdmin, admin.Email, admin.FullName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.admins.UpdateLastLogin(ctx, admin.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	if err := s.admins.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &admin.ID,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: &admin.ID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record login audit log", zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		IssuedAt:    time.Now().UTC(),
		Actor: models.ActorInfo{
			ID:    admin.ID,
			Email: admin.Email,
			Name:  admin.FullName,
			Role:  models.RoleSuperAdmin,
		},
	}, nil
}

// ValidateToken parses and validates an access token returning the claims. The
// actor's account must still exist and be active.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	switch claims.Role {
	case models.RoleSchool:
		school, err := s.schools.FindByID(ctx, claims.ActorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
		}
		if !school.Active {
			return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "school account is inactive")
		}
	case models.RoleSuperAdmin:
		admin, err := s.admins.FindByID(ctx, claims.ActorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin")
		}
		if !admin.Active {
			return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "admin account is inactive")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown actor role")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(actorID string, role models.ActorRole, email, name string) (string, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		ActorID: actorID,
		Role:    role,
		Email:   email,
		Name:    name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   actorID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}
