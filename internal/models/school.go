package models

import "time"

// School represents a content-consuming tenant with a download ledger.
type School struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Active       bool       `db:"active" json:"active"`
	SubStartDate *time.Time `db:"sub_start_date" json:"sub_start_date,omitempty"`
	SubEndDate   *time.Time `db:"sub_end_date" json:"sub_end_date,omitempty"`
	SubActive    bool       `db:"sub_active" json:"sub_active"`
	QuotaAllowed int        `db:"quota_allowed" json:"quota_allowed"`
	QuotaUsed    int        `db:"quota_used" json:"quota_used"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// QuotaRemaining returns how many downloads the school may still perform.
func (s *School) QuotaRemaining() int {
	remaining := s.QuotaAllowed - s.QuotaUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreateSchoolRequest is the admin payload for onboarding a school.
type CreateSchoolRequest struct {
	Name         string     `json:"name" validate:"required"`
	Email        string     `json:"email" validate:"required,email"`
	Password     string     `json:"password" validate:"required,min=8"`
	SubStartDate *time.Time `json:"sub_start_date"`
	SubEndDate   *time.Time `json:"sub_end_date"`
	QuotaAllowed *int       `json:"quota_allowed"`
}

// UpdateSchoolRequest is the admin payload for editing a school. Nil fields
// are left untouched; quota counters are adjusted through the quota endpoint.
type UpdateSchoolRequest struct {
	Name         *string    `json:"name"`
	Email        *string    `json:"email" validate:"omitempty,email"`
	Active       *bool      `json:"active"`
	SubStartDate *time.Time `json:"sub_start_date"`
	SubEndDate   *time.Time `json:"sub_end_date"`
	SubActive    *bool      `json:"sub_active"`
}

// SchoolFilter captures filtering criteria for listing schools.
type SchoolFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
