package models

import "time"

// DownloadRequestStatus enumerates the approval state machine.
type DownloadRequestStatus string

const (
	DownloadStatusPending  DownloadRequestStatus = "pending"
	DownloadStatusApproved DownloadRequestStatus = "approved"
	DownloadStatusRejected DownloadRequestStatus = "rejected"
)

// Valid reports whether the status is a known state.
func (s DownloadRequestStatus) Valid() bool {
	switch s {
	case DownloadStatusPending, DownloadStatusApproved, DownloadStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s DownloadRequestStatus) Terminal() bool {
	return s == DownloadStatusApproved || s == DownloadStatusRejected
}

// DownloadRequest represents one school's ask to download one video. Rows are
// never physically deleted; resolved requests remain as an audit artifact.
type DownloadRequest struct {
	ID          string                `db:"id" json:"id"`
	SchoolID    string                `db:"school_id" json:"school_id"`
	VideoID     string                `db:"video_id" json:"video_id"`
	Status      DownloadRequestStatus `db:"status" json:"status"`
	RequestedAt time.Time             `db:"requested_at" json:"requested_at"`
	ReviewedAt  *time.Time            `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy  *string               `db:"reviewed_by" json:"reviewed_by,omitempty"`
	Reason      *string               `db:"reason" json:"reason,omitempty"`

	VideoTitle string `db:"video_title" json:"video_title,omitempty"`
	SchoolName string `db:"school_name" json:"school_name,omitempty"`
}

// DownloadRequestFilter captures listing criteria for admin review queues.
type DownloadRequestFilter struct {
	SchoolID string
	Status   DownloadRequestStatus
	Page     int
	PageSize int
}
