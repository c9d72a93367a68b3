package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/export"
)

type usageReportRepository interface {
	Create(ctx context.Context, report *models.UsageReport) error
	List(ctx context.Context, filter models.UsageFilter) ([]models.UsageReport, int, error)
	SubjectWise(ctx context.Context, schoolID string, from, to *time.Time) ([]models.SubjectUsage, error)
}

// ReportService owns the append-only usage trail and its read-side
// aggregations.
type ReportService struct {
	reports   usageReportRepository
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs a ReportService instance.
func NewReportService(reports usageReportRepository, csv *export.CSVExporter, pdf *export.PDFExporter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{reports: reports, csv: csv, pdf: pdf, metrics: metrics, validator: validate, logger: logger}
}

// Track appends a client-reported playback event for the school. The download
// action is reserved for the download paths and is refused here.
func (s *ReportService) Track(ctx context.Context, schoolID string, req models.TrackUsageRequest) (*models.UsageReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid usage payload")
	}
	if !req.Action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown usage action %q", req.Action))
	}
	if req.Action == models.UsageActionDownload {
		return nil, appErrors.Clone(appErrors.ErrValidation, "download events are recorded by the download endpoints")
	}

	report := &models.UsageReport{
		SchoolID: schoolID,
		Action:   req.Action,
		Duration: req.Duration,
		Metadata: req.Metadata,
	}
	if req.SubjectID != "" {
		report.SubjectID = &req.SubjectID
	}
	if req.VideoID != "" {
		report.VideoID = &req.VideoID
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record usage")
	}
	s.metrics.RecordUsageEvent(report.Action)
	return report, nil
}

// RecordDownload appends the system-side download event. Called exactly once
// per successful quota consumption, after the ledger charge.
func (s *ReportService) RecordDownload(ctx context.Context, schoolID, videoID, subjectID string) error {
	report := &models.UsageReport{
		SchoolID: schoolID,
		Action:   models.UsageActionDownload,
	}
	if videoID != "" {
		report.VideoID = &videoID
	}
	if subjectID != "" {
		report.SubjectID = &subjectID
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download usage")
	}
	s.metrics.RecordUsageEvent(models.UsageActionDownload)
	return nil
}

// List returns usage events matching the filter with pagination.
func (s *ReportService) List(ctx context.Context, filter models.UsageFilter) ([]models.UsageReport, *models.Pagination, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown usage action %q", filter.Action))
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "window start is after window end")
	}

	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list usage")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	return reports, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SubjectWise aggregates play activity per subject for one school.
func (s *ReportService) SubjectWise(ctx context.Context, schoolID string, from, to *time.Time) ([]models.SubjectUsage, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window start is after window end")
	}
	usage, err := s.reports.SubjectWise(ctx, schoolID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate usage")
	}
	return usage, nil
}

// Export renders the matching usage trail as CSV or PDF bytes.
func (s *ReportService) Export(ctx context.Context, filter models.UsageFilter, format string) ([]byte, string, string, error) {
	filter.Page = 1
	if filter.PageSize <= 0 {
		filter.PageSize = 500
	}
	reports, _, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load usage for export")
	}

	dataset := export.Dataset{
		Headers: []string{"Timestamp", "School", "Subject", "Video", "Action", "Duration"},
	}
	for _, report := range reports {
		duration := ""
		if report.Duration != nil {
			duration = strconv.Itoa(*report.Duration)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Timestamp": report.OccurredAt.UTC().Format(time.RFC3339),
			"School":    report.SchoolID,
			"Subject":   report.SubjectName,
			"Video":     report.VideoTitle,
			"Action":    string(report.Action),
			"Duration":  duration,
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch strings.ToLower(format) {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, fmt.Sprintf("usage-report-%s.csv", stamp), "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Usage Report")
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, fmt.Sprintf("usage-report-%s.pdf", stamp), "application/pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
