package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/service"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/response"
)

// SchoolHandler wires HTTP endpoints to school administration and the quota
// ledger.
type SchoolHandler struct {
	schools *service.SchoolService
	quota   *service.QuotaService
}

// NewSchoolHandler creates a new handler.
func NewSchoolHandler(schools *service.SchoolService, quota *service.QuotaService) *SchoolHandler {
	return &SchoolHandler{schools: schools, quota: quota}
}

// List godoc
// @Summary List schools
// @Tags Schools
// @Produce json
// @Param search query string false "Name/email search"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	filter := models.SchoolFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      parseIntQuery(c, "page", 1),
		PageSize:  parseIntQuery(c, "page_size", 20),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	schools, pagination, err := h.schools.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, pagination)
}

// Get godoc
// @Summary School detail
// @Tags Schools
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	school, err := h.schools.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Create godoc
// @Summary Onboard a school
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body models.CreateSchoolRequest true "School payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schools [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	var req models.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}

	claims := claimsFromContext(c)
	school, err := h.schools.Create(c.Request.Context(), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// Update godoc
// @Summary Edit a school
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body models.UpdateSchoolRequest true "School payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schools/{id} [put]
func (h *SchoolHandler) Update(c *gin.Context) {
	var req models.UpdateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}

	claims := claimsFromContext(c)
	school, err := h.schools.Update(c.Request.Context(), claims.ActorID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Delete godoc
// @Summary Soft-delete a school
// @Tags Schools
// @Param id path string true "School ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/schools/{id} [delete]
func (h *SchoolHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.schools.Delete(c.Request.Context(), claims.ActorID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type quotaPayload struct {
	Allowed int `json:"allowed" binding:"required"`
}

// SetQuota godoc
// @Summary Adjust a school's download allowance
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body quotaPayload true "New allowance"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schools/{id}/quota [put]
func (h *SchoolHandler) SetQuota(c *gin.Context) {
	var req quotaPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quota payload"))
		return
	}

	status, err := h.quota.SetAllowance(c.Request.Context(), c.Param("id"), req.Allowed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// QuotaStatus godoc
// @Summary The calling school's ledger state
// @Tags Schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/quota [get]
func (h *SchoolHandler) QuotaStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	status, err := h.quota.Status(c.Request.Context(), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
