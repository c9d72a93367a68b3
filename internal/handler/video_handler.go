package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/service"
	appErrors "github.com/noah-isme/vls-api/pkg/errors"
	"github.com/noah-isme/vls-api/pkg/response"
)

// VideoHandler wires HTTP endpoints to the video catalog and the direct
// download path.
type VideoHandler struct {
	videos    *service.VideoService
	downloads *service.DownloadService
	logger    *zap.Logger
}

// NewVideoHandler creates a new handler.
func NewVideoHandler(videos *service.VideoService, downloads *service.DownloadService, logger *zap.Logger) *VideoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoHandler{videos: videos, downloads: downloads, logger: logger}
}

// List godoc
// @Summary List active videos
// @Tags Videos
// @Produce json
// @Param subject_id query string false "Filter by subject"
// @Param class query string false "Filter by class level"
// @Param search query string false "Title/topic search"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /videos [get]
func (h *VideoHandler) List(c *gin.Context) {
	filter := models.VideoFilter{
		SubjectID:  c.Query("subject_id"),
		ClassLevel: c.Query("class"),
		Search:     c.Query("search"),
		Page:       parseIntQuery(c, "page", 1),
		PageSize:   parseIntQuery(c, "page_size", 20),
	}

	videos, pagination, err := h.videos.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, videos, pagination)
}

// Detail godoc
// @Summary Video detail
// @Description Returns the video and records a view event for the school
// @Tags Videos
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /videos/{id} [get]
func (h *VideoHandler) Detail(c *gin.Context) {
	claims := claimsFromContext(c)
	schoolID := ""
	if claims != nil && claims.Role == models.RoleSchool {
		schoolID = claims.ActorID
	}

	video, err := h.videos.Detail(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, video, nil)
}

// Recent godoc
// @Summary Newest active videos
// @Tags Videos
// @Produce json
// @Param limit query int false "Max results"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /videos/recent [get]
func (h *VideoHandler) Recent(c *gin.Context) {
	videos, err := h.videos.Recent(c.Request.Context(), parseIntQuery(c, "limit", 5))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, videos, nil)
}

// Download godoc
// @Summary Quota-gated direct download
// @Description Consumes one quota unit and streams the media file
// @Tags Videos
// @Produce octet-stream
// @Param id path string true "Video ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /videos/{id}/download [get]
func (h *VideoHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleSchool {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	payload, err := h.downloads.Direct(c.Request.Context(), claims.ActorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.stream(c, payload)
}

// Create godoc
// @Summary Register a video
// @Tags Videos
// @Accept json
// @Produce json
// @Param payload body models.CreateVideoRequest true "Video payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/videos [post]
func (h *VideoHandler) Create(c *gin.Context) {
	var req models.CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid video payload"))
		return
	}

	claims := claimsFromContext(c)
	video, err := h.videos.Create(c.Request.Context(), claims.ActorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, video)
}

// Update godoc
// @Summary Edit a video
// @Tags Videos
// @Accept json
// @Produce json
// @Param id path string true "Video ID"
// @Param payload body models.UpdateVideoRequest true "Video payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/videos/{id} [put]
func (h *VideoHandler) Update(c *gin.Context) {
	var req models.UpdateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid video payload"))
		return
	}

	claims := claimsFromContext(c)
	video, err := h.videos.Update(c.Request.Context(), claims.ActorID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, video, nil)
}

// Delete godoc
// @Summary Soft-delete a video
// @Tags Videos
// @Param id path string true "Video ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/videos/{id} [delete]
func (h *VideoHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.videos.Delete(c.Request.Context(), claims.ActorID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// stream writes the media payload with attachment headers. Mid-stream errors
// are logged once; by then the quota charge and usage event already stand.
func (h *VideoHandler) stream(c *gin.Context, payload *service.DownloadPayload) {
	defer payload.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+payload.Filename+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Length", strconv.FormatInt(payload.Size, 10))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, payload.File); err != nil {
		h.logger.Error("media stream interrupted",
			zap.String("video_id", payload.Video.ID),
			zap.Error(err))
	}
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
