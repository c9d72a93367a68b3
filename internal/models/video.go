package models

import "time"

// Video represents a lesson recording. Active and Downloadable are independent
// flags: an inactive video is invisible, an active non-downloadable one can be
// streamed but never downloaded.
type Video struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description,omitempty"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	ClassLevel    string    `db:"class_level" json:"class"`
	Chapter       string    `db:"chapter" json:"chapter,omitempty"`
	Topic         string    `db:"topic" json:"topic,omitempty"`
	VideoPath     string    `db:"video_path" json:"video_path"`
	ThumbnailPath string    `db:"thumbnail_path" json:"thumbnail_path,omitempty"`
	Duration      string    `db:"duration" json:"duration,omitempty"`
	FileSize      int64     `db:"file_size" json:"file_size"`
	Downloadable  bool      `db:"downloadable" json:"downloadable"`
	Active        bool      `db:"active" json:"active"`
	Views         int64     `db:"views" json:"views"`
	CreatedBy     *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CreateVideoRequest is the admin payload for registering a video.
type CreateVideoRequest struct {
	Title         string `json:"title" validate:"required"`
	Description   string `json:"description"`
	SubjectID     string `json:"subject_id" validate:"required"`
	ClassLevel    string `json:"class" validate:"required"`
	Chapter       string `json:"chapter"`
	Topic         string `json:"topic"`
	VideoPath     string `json:"video_path" validate:"required"`
	ThumbnailPath string `json:"thumbnail_path"`
	Duration      string `json:"duration"`
	FileSize      int64  `json:"file_size"`
	Downloadable  bool   `json:"downloadable"`
}

// UpdateVideoRequest is the admin payload for editing a video. Nil fields are
// left untouched.
type UpdateVideoRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	SubjectID     *string `json:"subject_id"`
	ClassLevel    *string `json:"class"`
	Chapter       *string `json:"chapter"`
	Topic         *string `json:"topic"`
	ThumbnailPath *string `json:"thumbnail_path"`
	Duration      *string `json:"duration"`
	Downloadable  *bool   `json:"downloadable"`
	Active        *bool   `json:"active"`
}

// VideoFilter captures filtering criteria for listing videos.
type VideoFilter struct {
	SubjectID  string
	ClassLevel string
	Search     string
	Page       int
	PageSize   int
}
