package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/repository"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
)

type mockSchoolRepo struct {
	school       *models.School
	findErr      error
	consumeErr   error
	allowanceErr error
	consumed     int
}

func (m *mockSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.school, nil
}

func (m *mockSchoolRepo) ConsumeQuota(ctx context.Context, id string) error {
	if m.consumeErr != nil {
		return m.consumeErr
	}
	m.consumed++
	m.school.QuotaUsed++
	return nil
}

func (m *mockSchoolRepo) SetQuotaAllowance(ctx context.Context, id string, allowed int) error {
	if m.allowanceErr != nil {
		return m.allowanceErr
	}
	m.school.QuotaAllowed = allowed
	return nil
}

func TestQuotaConsume(t *testing.T) {
	repo := &mockSchoolRepo{school: &models.School{ID: "s1", Active: true, QuotaAllowed: 1, QuotaUsed: 0}}
	svc := NewQuotaService(repo, NewMetricsService(), zap.NewNop())

	require.NoError(t, svc.Consume(context.Background(), "s1"))
	assert.Equal(t, 1, repo.consumed)

	repo.consumeErr = repository.ErrQuotaExhausted
	err := svc.Consume(context.Background(), "s1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrQuotaExceeded.Code, appErr.Code)
	assert.Equal(t, 1, repo.consumed)
}

func TestQuotaConsumeInactiveSchool(t *testing.T) {
	repo := &mockSchoolRepo{school: &models.School{ID: "s1", Active: false, QuotaAllowed: 10}}
	svc := NewQuotaService(repo, NewMetricsService(), zap.NewNop())

	err := svc.Consume(context.Background(), "s1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
	assert.Zero(t, repo.consumed)
}

func TestQuotaConsumeUnknownSchool(t *testing.T) {
	repo := &mockSchoolRepo{findErr: sql.ErrNoRows}
	svc := NewQuotaService(repo, NewMetricsService(), zap.NewNop())

	err := svc.Consume(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestQuotaStatus(t *testing.T) {
	repo := &mockSchoolRepo{school: &models.School{ID: "s1", Active: true, QuotaAllowed: 50, QuotaUsed: 12}}
	svc := NewQuotaService(repo, NewMetricsService(), zap.NewNop())

	status, err := svc.Status(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, status.Allowed)
	assert.Equal(t, 12, status.Used)
	assert.Equal(t, 38, status.Remaining)
}

func TestSetAllowanceBelowUsage(t *testing.T) {
	repo := &mockSchoolRepo{
		school:       &models.School{ID: "s1", Active: true, QuotaAllowed: 50, QuotaUsed: 10},
		allowanceErr: repository.ErrAllowanceBelowUsage,
	}
	svc := NewQuotaService(repo, NewMetricsService(), zap.NewNop())

	_, err := svc.SetAllowance(context.Background(), "s1", 5)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

// concurrentLedger mirrors the conditional-update semantics of the schools
// table: the increment and the allowance check happen under one lock, exactly
// like the single UPDATE row lock in SchoolRepository.ConsumeQuota.
type concurrentLedger struct {
	mu      sync.Mutex
	allowed int
	used    int
	active  bool
}

func (l *concurrentLedger) FindByID(context.Context, string) (*models.School, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &models.School{ID: "s1", Active: l.active, QuotaAllowed: l.allowed, QuotaUsed: l.used}, nil
}

func (l *concurrentLedger) ConsumeQuota(context.Context, string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active || l.used >= l.allowed {
		return repository.ErrQuotaExhausted
	}
	l.used++
	return nil
}

func (l *concurrentLedger) SetQuotaAllowance(_ context.Context, _ string, allowed int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if allowed < l.used {
		return repository.ErrAllowanceBelowUsage
	}
	l.allowed = allowed
	return nil
}

func TestQuotaConsumeParallelNeverExceedsAllowance(t *testing.T) {
	const (
		allowed  = 25
		workers  = 8
		attempts = 20
	)
	ledger := &concurrentLedger{allowed: allowed, active: true}
	svc := NewQuotaService(ledger, NewMetricsService(), zap.NewNop())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < attempts; j++ {
				err := svc.Consume(context.Background(), "s1")
				mu.Lock()
				if err == nil {
					successes++
				} else if appErrors.FromError(err).Code == appErrors.ErrQuotaExceeded.Code {
					rejected++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, allowed, successes)
	assert.Equal(t, workers*attempts-allowed, rejected)
	assert.Equal(t, allowed, ledger.used)
	assert.LessOrEqual(t, ledger.used, ledger.allowed)
}

func TestSetAllowanceNegative(t *testing.T) {
	repo := &mockSchoolRepo{school: &models.School{ID: "s1", Active: true}}
	svc := NewQuotaService(repo, NewMetricsService(), zap.NewNop())

	_, err := svc.SetAllowance(context.Background(), "s1", -1)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
