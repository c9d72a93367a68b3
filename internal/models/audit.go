package models

import "time"

// AuditAction constants represent administrative actions to be logged. This is
// the operator audit log, distinct from the usage trail in usage_reports.
const (
	AuditActionLogin         = "LOGIN"
	AuditActionSchoolCreate  = "SCHOOL_CREATE"
	AuditActionSchoolUpdate  = "SCHOOL_UPDATE"
	AuditActionSchoolDelete  = "SCHOOL_DELETE"
	AuditActionQuotaAdjust   = "QUOTA_ADJUST"
	AuditActionVideoCreate   = "VIDEO_CREATE"
	AuditActionVideoUpdate   = "VIDEO_UPDATE"
	AuditActionVideoDelete   = "VIDEO_DELETE"
	AuditActionRequestReview = "REQUEST_REVIEW"
)

// AuditLog represents an operator audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
