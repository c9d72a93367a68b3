package models

import (
	"encoding/json"
	"time"
)

// UsageAction is the closed set of recordable consumption events.
type UsageAction string

const (
	UsageActionView     UsageAction = "view"
	UsageActionPlay     UsageAction = "play"
	UsageActionDownload UsageAction = "download"
	UsageActionPause    UsageAction = "pause"
	UsageActionResume   UsageAction = "resume"
)

// Valid reports whether the action belongs to the closed set.
func (a UsageAction) Valid() bool {
	switch a {
	case UsageActionView, UsageActionPlay, UsageActionDownload, UsageActionPause, UsageActionResume:
		return true
	}
	return false
}

// UsageReport is an append-only consumption event. Duration is client-reported
// and unvalidated; consumers must not assume it is present or non-negative.
type UsageReport struct {
	ID         string          `db:"id" json:"id"`
	SchoolID   string          `db:"school_id" json:"school_id"`
	SubjectID  *string         `db:"subject_id" json:"subject_id,omitempty"`
	VideoID    *string         `db:"video_id" json:"video_id,omitempty"`
	Action     UsageAction     `db:"action" json:"action"`
	Duration   *int            `db:"duration" json:"duration,omitempty"`
	OccurredAt time.Time       `db:"occurred_at" json:"timestamp"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`

	SubjectName string `db:"subject_name" json:"subject_name,omitempty"`
	VideoTitle  string `db:"video_title" json:"video_title,omitempty"`
}

// TrackUsageRequest is the client payload for recording playback activity.
// Download events are written by the download paths themselves, never by
// clients.
type TrackUsageRequest struct {
	SubjectID string          `json:"subject_id"`
	VideoID   string          `json:"video_id"`
	Action    UsageAction     `json:"action" validate:"required"`
	Duration  *int            `json:"duration"`
	Metadata  json.RawMessage `json:"metadata"`
}

// UsageFilter scopes audit-trail reads. A nil From means "since epoch" and a
// nil To means "until now".
type UsageFilter struct {
	SchoolID  string
	SubjectID string
	Action    UsageAction
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// SubjectUsage is the per-subject aggregation of play activity.
type SubjectUsage struct {
	SubjectID     string `db:"subject_id" json:"subject_id"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
	VideosWatched int    `db:"videos_watched" json:"videos_watched"`
	TotalDuration int64  `db:"total_duration" json:"total_duration"`
}
