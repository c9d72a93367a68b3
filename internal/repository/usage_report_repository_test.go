package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vls-api/internal/models"
)

func TestCreateUsageReport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageReportRepository(db)

	mock.ExpectExec("INSERT INTO usage_reports").WillReturnResult(sqlmock.NewResult(1, 1))

	duration := 420
	subjectID := "sub1"
	videoID := "v1"
	report := &models.UsageReport{SchoolID: "s1", SubjectID: &subjectID, VideoID: &videoID, Action: models.UsageActionPlay, Duration: &duration}
	err := repo.Create(context.Background(), report)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.OccurredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsageReportsWindow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageReportRepository(db)

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	listRows := sqlmock.NewRows([]string{"id", "school_id", "subject_id", "video_id", "action", "duration", "occurred_at", "metadata", "subject_name", "video_title"}).
		AddRow("u1", "s1", "sub1", "v1", string(models.UsageActionPlay), 300, now, []byte(`{}`), "Mathematics", "Fractions")
	mock.ExpectQuery(regexp.QuoteMeta("FROM usage_reports ur")).
		WithArgs("s1", from).
		WillReturnRows(listRows)
	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM usage_reports")).
		WithArgs("s1", from).
		WillReturnRows(countRows)

	reports, total, err := repo.List(context.Background(), models.UsageFilter{SchoolID: "s1", From: &from})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Mathematics", reports[0].SubjectName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectWise(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUsageReportRepository(db)

	rows := sqlmock.NewRows([]string{"subject_id", "subject_name", "videos_watched", "total_duration"}).
		AddRow("sub1", "Mathematics", 12, 5400).
		AddRow("sub2", "Science", 7, 2100)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY ur.subject_id, sub.name ORDER BY videos_watched DESC")).
		WithArgs("s1", string(models.UsageActionPlay)).
		WillReturnRows(rows)

	usage, err := repo.SubjectWise(context.Background(), "s1", nil, nil)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "Mathematics", usage[0].SubjectName)
	assert.Equal(t, 12, usage[0].VideosWatched)
	assert.NoError(t, mock.ExpectationsWereMet())
}
