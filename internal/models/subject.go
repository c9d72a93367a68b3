package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject groups videos by curriculum area.
type Subject struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Description   string         `db:"description" json:"description,omitempty"`
	Classes       pq.StringArray `db:"classes" json:"classes"`
	VideoCount    int            `db:"video_count" json:"video_count"`
	ThumbnailPath string         `db:"thumbnail_path" json:"thumbnail_path,omitempty"`
	Active        bool           `db:"active" json:"active"`
	CreatedBy     *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// CreateSubjectRequest is the admin payload for adding a subject.
type CreateSubjectRequest struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	Classes       []string `json:"classes"`
	ThumbnailPath string   `json:"thumbnail_path"`
}

// UpdateSubjectRequest is the admin payload for editing a subject. Nil fields
// are left untouched.
type UpdateSubjectRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Classes       []string `json:"classes"`
	ThumbnailPath *string  `json:"thumbnail_path"`
	Active        *bool    `json:"active"`
}
