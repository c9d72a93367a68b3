package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/service"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/response"
)

// ReportHandler wires HTTP endpoints to the usage trail and its aggregations.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Track godoc
// @Summary Record a playback event
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body models.TrackUsageRequest true "Usage payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/track [post]
func (h *ReportHandler) Track(c *gin.Context) {
	var req models.TrackUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid usage payload"))
		return
	}

	claims := claimsFromContext(c)
	report, err := h.service.Track(c.Request.Context(), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// List godoc
// @Summary School-scoped usage trail
// @Tags Reports
// @Produce json
// @Param subject_id query string false "Filter by subject"
// @Param action query string false "Filter by action"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	filter, err := h.buildFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	reports, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// SubjectWise godoc
// @Summary Per-subject play aggregation
// @Tags Reports
// @Produce json
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/subject-wise [get]
func (h *ReportHandler) SubjectWise(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims := claimsFromContext(c)
	usage, err := h.service.SubjectWise(c.Request.Context(), claims.ActorID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, usage, nil)
}

// Export godoc
// @Summary Export the usage trail as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	filter, err := h.buildFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, filename, contentType, err := h.service.Export(c.Request.Context(), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

func (h *ReportHandler) buildFilter(c *gin.Context) (models.UsageFilter, error) {
	from, to, err := parseWindow(c)
	if err != nil {
		return models.UsageFilter{}, err
	}

	claims := claimsFromContext(c)
	filter := models.UsageFilter{
		SubjectID: c.Query("subject_id"),
		Action:    models.UsageAction(c.Query("action")),
		From:      from,
		To:        to,
		Page:      parseIntQuery(c, "page", 1),
		PageSize:  parseIntQuery(c, "page_size", 50),
	}

	// Admins may inspect any school; schools only their own trail.
	if claims.Role == models.RoleSuperAdmin {
		filter.SchoolID = c.Query("school_id")
	} else {
		filter.SchoolID = claims.ActorID
	}
	return filter, nil
}

func parseWindow(c *gin.Context) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp")
		}
		from = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp")
		}
		to = &ts
	}
	return from, to, nil
}
