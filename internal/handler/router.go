package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vls-api/internal/middleware"
	"github.com/noah-isme/vls-api/internal/models"
	"github.com/noah-isme/vls-api/internal/repository"
	"github.com/noah-isme/vls-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth      *AuthHandler
	Video     *VideoHandler
	Download  *DownloadHandler
	Report    *ReportHandler
	School    *SchoolHandler
	Subject   *SubjectHandler
	Dashboard *DashboardHandler
	Metrics   *MetricsHandler
}

// RegisterRoutes mounts the API surface under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, admins *repository.AdminRepository) {
	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.LoginSchool)
	api.POST("/auth/admin/login", h.Auth.LoginAdmin)

	// Signed media tokens carry their own authorization; bearer claims are
	// optional and only attribute the redemption.
	api.GET("/media/:token", middleware.OptionalJWT(auth), h.Download.RedeemLink)

	authed := api.Group("")
	authed.Use(middleware.JWT(auth))
	authed.GET("/auth/me", h.Auth.Me)

	readers := authed.Group("")
	readers.Use(middleware.RequireRoles(models.RoleSchool, models.RoleSuperAdmin))
	{
		readers.GET("/videos", h.Video.List)
		readers.GET("/videos/recent", h.Video.Recent)
		readers.GET("/videos/:id", h.Video.Detail)
		readers.GET("/subjects", h.Subject.List)
		readers.GET("/subjects/:id", h.Subject.Get)
		readers.GET("/reports", h.Report.List)
	}

	schools := authed.Group("")
	schools.Use(middleware.RequireRoles(models.RoleSchool))
	{
		schools.GET("/videos/:id/download", h.Video.Download)
		schools.POST("/downloads/requests", h.Download.CreateRequest)
		schools.GET("/downloads/requests", h.Download.ListRequests)
		schools.GET("/downloads/requests/:id", h.Download.GetRequest)
		schools.GET("/downloads/requests/:id/link", h.Download.IssueLink)
		schools.POST("/reports/track", h.Report.Track)
		schools.GET("/reports/subject-wise", h.Report.SubjectWise)
		schools.GET("/reports/export", h.Report.Export)
		schools.GET("/dashboard", h.Dashboard.School)
		schools.GET("/schools/quota", h.School.QuotaStatus)
	}

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin))
	{
		admin.GET("/schools", h.School.List)
		admin.POST("/schools", h.School.Create)
		admin.GET("/schools/:id", h.School.Get)
		admin.PUT("/schools/:id", h.School.Update)
		admin.DELETE("/schools/:id", h.School.Delete)
		admin.PUT("/schools/:id/quota", middleware.Audit(admins, models.AuditActionQuotaAdjust, "school"), h.School.SetQuota)

		admin.POST("/subjects", h.Subject.Create)
		admin.PUT("/subjects/:id", h.Subject.Update)
		admin.DELETE("/subjects/:id", h.Subject.Delete)

		admin.POST("/videos", h.Video.Create)
		admin.PUT("/videos/:id", h.Video.Update)
		admin.DELETE("/videos/:id", h.Video.Delete)

		admin.GET("/downloads/requests", h.Download.AdminListRequests)
		admin.PUT("/downloads/requests/:id/review", h.Download.Review)

		admin.GET("/dashboard", h.Dashboard.Admin)
		admin.GET("/metrics", h.Metrics.Snapshot)
	}
}
