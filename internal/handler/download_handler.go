package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/service"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/response"
)

// DownloadHandler wires HTTP endpoints to the approval workflow and the
// approved-request retrieval path.
type DownloadHandler struct {
	requests  *service.RequestService
	downloads *service.DownloadService
	videos    *VideoHandler
	logger    *zap.Logger
}

// NewDownloadHandler creates a new handler.
func NewDownloadHandler(requests *service.RequestService, downloads *service.DownloadService, videos *VideoHandler, logger *zap.Logger) *DownloadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadHandler{requests: requests, downloads: downloads, videos: videos, logger: logger}
}

type createRequestPayload struct {
	VideoID string `json:"video_id" binding:"required"`
}

// CreateRequest godoc
// @Summary Open a pending download request
// @Tags Downloads
// @Accept json
// @Produce json
// @Param payload body createRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /downloads/requests [post]
func (h *DownloadHandler) CreateRequest(c *gin.Context) {
	var req createRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	claims := claimsFromContext(c)
	request, err := h.requests.Create(c.Request.Context(), claims.ActorID, req.VideoID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// ListRequests godoc
// @Summary List the calling school's download requests
// @Tags Downloads
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /downloads/requests [get]
func (h *DownloadHandler) ListRequests(c *gin.Context) {
	claims := claimsFromContext(c)
	filter := models.DownloadRequestFilter{
		SchoolID: claims.ActorID,
		Status:   models.DownloadRequestStatus(c.Query("status")),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// GetRequest godoc
// @Summary Download request detail
// @Tags Downloads
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /downloads/requests/{id} [get]
func (h *DownloadHandler) GetRequest(c *gin.Context) {
	claims := claimsFromContext(c)
	request, err := h.requests.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// IssueLink godoc
// @Summary Signed retrieval link for an approved request
// @Tags Downloads
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /downloads/requests/{id}/link [get]
func (h *DownloadHandler) IssueLink(c *gin.Context) {
	claims := claimsFromContext(c)
	link, err := h.downloads.IssueLink(c.Request.Context(), claims.ActorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// RedeemLink godoc
// @Summary Stream media referenced by a signed token
// @Tags Downloads
// @Produce octet-stream
// @Param token path string true "Signed media token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /media/{token} [get]
func (h *DownloadHandler) RedeemLink(c *gin.Context) {
	payload, err := h.downloads.Redeem(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	fields := []zap.Field{zap.String("video_id", payload.Video.ID)}
	if claims := claimsFromContext(c); claims != nil {
		fields = append(fields,
			zap.String("actor_id", claims.ActorID),
			zap.String("actor_role", string(claims.Role)))
	}
	h.logger.Info("signed link redeemed", fields...)

	h.videos.stream(c, payload)
}

// AdminListRequests godoc
// @Summary List download requests across schools
// @Tags Downloads
// @Produce json
// @Param status query string false "Filter by status"
// @Param school_id query string false "Filter by school"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/downloads/requests [get]
func (h *DownloadHandler) AdminListRequests(c *gin.Context) {
	filter := models.DownloadRequestFilter{
		SchoolID: c.Query("school_id"),
		Status:   models.DownloadRequestStatus(c.Query("status")),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Review godoc
// @Summary Approve or reject a pending request
// @Tags Downloads
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewDecision true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/downloads/requests/{id}/review [put]
func (h *DownloadHandler) Review(c *gin.Context) {
	var decision service.ReviewDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	claims := claimsFromContext(c)
	request, err := h.requests.Review(c.Request.Context(), c.Param("id"), claims.ActorID, decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
