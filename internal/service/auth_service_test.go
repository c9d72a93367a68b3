package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type mockAuthSchools struct {
	school *models.School
	err    error
}

func (m *mockAuthSchools) FindByEmail(ctx context.Context, email string) (*models.School, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.school, nil
}

func (m *mockAuthSchools) FindByID(ctx context.Context, id string) (*models.School, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.school, nil
}

type mockAuthAdmins struct {
	admin            *models.SuperAdmin
	err              error
	lastLoginUpdated bool
	auditLogs        []*models.AuditLog
}

func (m *mockAuthAdmins) FindByEmail(ctx context.Context, email string) (*models.SuperAdmin, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.admin, nil
}

func (m *mockAuthAdmins) FindByID(ctx context.Context, id string) (*models.SuperAdmin, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.admin, nil
}

func (m *mockAuthAdmins) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthAdmins) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func hashPassword(t *testing.T, raw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(schools *mockAuthSchools, admins *mockAuthAdmins) *AuthService {
	return NewAuthService(schools, admins, nil, zap.NewNop(), AuthConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "vls-api-test",
	})
}

func TestLoginSchool(t *testing.T) {
	schools := &mockAuthSchools{school: &models.School{
		ID:           "s1",
		Name:         "Springfield High",
		Email:        "admin@springfield.test",
		PasswordHash: hashPassword(t, "secret-pass"),
		Active:       true,
	}}
	svc := newAuthService(schools, &mockAuthAdmins{})

	resp, err := svc.LoginSchool(context.Background(), models.LoginRequest{Email: "admin@springfield.test", Password: "secret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleSchool, resp.Actor.Role)

	claims, err := svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.ActorID)
	assert.Equal(t, models.RoleSchool, claims.Role)
}

func TestLoginSchoolWrongPassword(t *testing.T) {
	schools := &mockAuthSchools{school: &models.School{
		ID:           "s1",
		Email:        "admin@springfield.test",
		PasswordHash: hashPassword(t, "secret-pass"),
		Active:       true,
	}}
	svc := newAuthService(schools, &mockAuthAdmins{})

	_, err := svc.LoginSchool(context.Background(), models.LoginRequest{Email: "admin@springfield.test", Password: "wrong"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginSchoolInactive(t *testing.T) {
	schools := &mockAuthSchools{school: &models.School{
		ID:           "s1",
		Email:        "admin@springfield.test",
		PasswordHash: hashPassword(t, "secret-pass"),
		Active:       false,
	}}
	svc := newAuthService(schools, &mockAuthAdmins{})

	_, err := svc.LoginSchool(context.Background(), models.LoginRequest{Email: "admin@springfield.test", Password: "secret-pass"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestLoginSchoolUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockAuthSchools{err: sql.ErrNoRows}, &mockAuthAdmins{})

	_, err := svc.LoginSchool(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginAdmin(t *testing.T) {
	admins := &mockAuthAdmins{admin: &models.SuperAdmin{
		ID:           "admin-1",
		Email:        "ops@vls.test",
		FullName:     "Platform Ops",
		PasswordHash: hashPassword(t, "admin-pass"),
		Active:       true,
	}}
	svc := newAuthService(&mockAuthSchools{}, admins)

	resp, err := svc.LoginAdmin(context.Background(), models.LoginRequest{Email: "ops@vls.test", Password: "admin-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, resp.Actor.Role)
	assert.True(t, admins.lastLoginUpdated)
	require.Len(t, admins.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, admins.auditLogs[0].Action)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := newAuthService(&mockAuthSchools{}, &mockAuthAdmins{})

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
