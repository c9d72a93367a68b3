package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vls-api/internal/service"
	"github.com/noah-isme/vls-api/pkg/response"
)

// DashboardHandler wires HTTP endpoints to the overview aggregators.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// School godoc
// @Summary The calling school's dashboard
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) School(c *gin.Context) {
	claims := claimsFromContext(c)
	dashboard, err := h.service.SchoolDashboard(c.Request.Context(), claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Admin godoc
// @Summary Platform-wide operator dashboard
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	dashboard, err := h.service.AdminDashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
