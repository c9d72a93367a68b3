package models

import "time"

// QuotaStatus summarizes a school's download ledger.
type QuotaStatus struct {
	Allowed   int `json:"allowed"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// SchoolDashboard aggregates a school's consumption overview.
type SchoolDashboard struct {
	SchoolID     string         `json:"school_id"`
	SchoolName   string         `json:"school_name"`
	Quota        QuotaStatus    `json:"quota"`
	WeeklyViews  int            `json:"weekly_views"`
	SubjectUsage []SubjectUsage `json:"subject_usage"`
	RecentVideos []Video        `json:"recent_videos"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// AdminDashboard aggregates platform-wide counters for operators.
type AdminDashboard struct {
	ActiveSchools    int       `json:"active_schools"`
	ActiveSubjects   int       `json:"active_subjects"`
	ActiveVideos     int       `json:"active_videos"`
	PendingRequests  int       `json:"pending_requests"`
	ApprovedRequests int       `json:"approved_requests"`
	StorageUsed      int64     `json:"storage_used"`
	StorageUsedHuman string    `json:"storage_used_human"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// SystemMetrics is a lightweight snapshot of runtime counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	DownloadsTotal           uint64    `json:"downloads_total"`
	QuotaRejections          uint64    `json:"quota_rejections"`
	UsageEvents              uint64    `json:"usage_events"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
