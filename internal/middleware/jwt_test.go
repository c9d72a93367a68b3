package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/service"
)

type stubSchoolAccounts struct {
	school *models.School
}

func (s *stubSchoolAccounts) FindByEmail(context.Context, string) (*models.School, error) {
	if s.school == nil {
		return nil, sql.ErrNoRows
	}
	return s.school, nil
}

func (s *stubSchoolAccounts) FindByID(context.Context, string) (*models.School, error) {
	if s.school == nil {
		return nil, sql.ErrNoRows
	}
	return s.school, nil
}

type stubAdminAccounts struct{}

func (s *stubAdminAccounts) FindByEmail(context.Context, string) (*models.SuperAdmin, error) {
	return nil, sql.ErrNoRows
}

func (s *stubAdminAccounts) FindByID(context.Context, string) (*models.SuperAdmin, error) {
	return nil, sql.ErrNoRows
}

func (s *stubAdminAccounts) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (s *stubAdminAccounts) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

func newAuthFixture(t *testing.T) (*service.AuthService, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	schools := &stubSchoolAccounts{school: &models.School{
		ID:           "school-1",
		Name:         "Test School",
		Email:        "school@example.com",
		PasswordHash: string(hash),
		Active:       true,
	}}
	svc := service.NewAuthService(schools, &stubAdminAccounts{}, nil, nil, service.AuthConfig{
		Secret: "test-secret",
		Expiry: time.Minute,
		Issuer: "vls-test",
	})

	res, err := svc.LoginSchool(context.Background(), models.LoginRequest{
		Email:    "school@example.com",
		Password: "secret",
	})
	require.NoError(t, err)
	return svc, res.AccessToken
}

func authedContext(rec *httptest.ResponseRecorder, authorization string) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/media/token", nil)
	if authorization != "" {
		c.Request.Header.Set("Authorization", authorization)
	}
	return c
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	svc, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	c := authedContext(rec, "")

	JWT(svc)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAttachesClaims(t *testing.T) {
	svc, token := newAuthFixture(t)

	rec := httptest.NewRecorder()
	c := authedContext(rec, "Bearer "+token)

	JWT(svc)(c)

	require.False(t, c.IsAborted())
	value, ok := c.Get(ContextUserKey)
	require.True(t, ok)
	claims := value.(*models.JWTClaims)
	assert.Equal(t, "school-1", claims.ActorID)
	assert.Equal(t, models.RoleSchool, claims.Role)
}

func TestOptionalJWTWithoutHeaderPassesThrough(t *testing.T) {
	svc, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	c := authedContext(rec, "")

	OptionalJWT(svc)(c)

	assert.False(t, c.IsAborted())
	_, ok := c.Get(ContextUserKey)
	assert.False(t, ok)
}

func TestOptionalJWTAttachesClaimsWhenPresent(t *testing.T) {
	svc, token := newAuthFixture(t)

	rec := httptest.NewRecorder()
	c := authedContext(rec, "Bearer "+token)

	OptionalJWT(svc)(c)

	require.False(t, c.IsAborted())
	value, ok := c.Get(ContextUserKey)
	require.True(t, ok)
	assert.Equal(t, "school-1", value.(*models.JWTClaims).ActorID)
}

func TestOptionalJWTIgnoresInvalidToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	c := authedContext(rec, "Bearer not-a-token")

	OptionalJWT(svc)(c)

	assert.False(t, c.IsAborted())
	_, ok := c.Get(ContextUserKey)
	assert.False(t, ok)
}
