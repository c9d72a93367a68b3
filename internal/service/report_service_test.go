package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/export"
)

type mockUsageRepo struct {
	reports []models.UsageReport
	usage   []models.SubjectUsage
	created []*models.UsageReport
	err     error
}

func (m *mockUsageRepo) Create(ctx context.Context, report *models.UsageReport) error {
	if m.err != nil {
		return m.err
	}
	report.ID = "u1"
	report.OccurredAt = time.Now().UTC()
	m.created = append(m.created, report)
	return nil
}

func (m *mockUsageRepo) List(ctx context.Context, filter models.UsageFilter) ([]models.UsageReport, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.reports, len(m.reports), nil
}

func (m *mockUsageRepo) SubjectWise(ctx context.Context, schoolID string, from, to *time.Time) ([]models.SubjectUsage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.usage, nil
}

func newReportService(repo *mockUsageRepo) *ReportService {
	return NewReportService(repo, export.NewCSVExporter(), export.NewPDFExporter(), NewMetricsService(), nil, zap.NewNop())
}

func TestTrackPlayEvent(t *testing.T) {
	repo := &mockUsageRepo{}
	svc := newReportService(repo)

	duration := 300
	report, err := svc.Track(context.Background(), "s1", models.TrackUsageRequest{
		SubjectID: "sub1",
		VideoID:   "v1",
		Action:    models.UsageActionPlay,
		Duration:  &duration,
	})
	require.NoError(t, err)
	assert.Equal(t, models.UsageActionPlay, report.Action)
	assert.Equal(t, "s1", report.SchoolID)
	require.Len(t, repo.created, 1)
}

func TestTrackRejectsUnknownAction(t *testing.T) {
	svc := newReportService(&mockUsageRepo{})

	_, err := svc.Track(context.Background(), "s1", models.TrackUsageRequest{Action: "seek"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTrackRejectsClientDownloadEvent(t *testing.T) {
	repo := &mockUsageRepo{}
	svc := newReportService(repo)

	_, err := svc.Track(context.Background(), "s1", models.TrackUsageRequest{Action: models.UsageActionDownload})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestTrackNegativeDurationAccepted(t *testing.T) {
	repo := &mockUsageRepo{}
	svc := newReportService(repo)

	duration := -30
	report, err := svc.Track(context.Background(), "s1", models.TrackUsageRequest{Action: models.UsageActionPause, Duration: &duration})
	require.NoError(t, err)
	require.NotNil(t, report.Duration)
	assert.Equal(t, -30, *report.Duration)
}

func TestListRejectsInvertedWindow(t *testing.T) {
	svc := newReportService(&mockUsageRepo{})

	from := time.Now()
	to := from.Add(-time.Hour)
	_, _, err := svc.List(context.Background(), models.UsageFilter{SchoolID: "s1", From: &from, To: &to})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExportCSV(t *testing.T) {
	duration := 120
	repo := &mockUsageRepo{reports: []models.UsageReport{{
		SchoolID:    "s1",
		Action:      models.UsageActionPlay,
		Duration:    &duration,
		OccurredAt:  time.Now().UTC(),
		SubjectName: "Mathematics",
		VideoTitle:  "Fractions",
	}}}
	svc := newReportService(repo)

	payload, filename, contentType, err := svc.Export(context.Background(), models.UsageFilter{SchoolID: "s1"}, "csv")
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Mathematics")
	assert.Contains(t, filename, ".csv")
	assert.Equal(t, "text/csv", contentType)
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := newReportService(&mockUsageRepo{})

	_, _, _, err := svc.Export(context.Background(), models.UsageFilter{}, "xlsx")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
