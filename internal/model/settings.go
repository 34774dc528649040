package model

import "time"

// PublishSettings holds the two admin gates.  Only the most recently created
// row is consulted.
//
// Form lock: IsFormOpen plus an advisory FormCloseDate.  Nothing locks the
// form automatically when FormCloseDate passes.
//
// Results window: PublishStart/PublishEnd plus the IsPublished override.
type PublishSettings struct {
	ID                   uint64     `json:"id"`
	IsFormOpen           bool       `json:"is_form_open"`
	FormCloseDate        *time.Time `json:"form_close_date,omitempty"`
	FormLockedByAdminID  uint64     `json:"form_locked_by_admin_id,omitempty"`
	FormLockedByAdmin    string     `json:"form_locked_by_admin_name,omitempty"`
	PublishStart         *time.Time `json:"publish_start_date,omitempty"`
	PublishEnd           *time.Time `json:"publish_end_date,omitempty"`
	IsPublished          bool       `json:"is_published"`
	PublishedByAdminID   uint64     `json:"published_by_admin_id,omitempty"`
	PublishedByAdminName string     `json:"published_by_admin_name,omitempty"`
	CreatedAt            time.Time  `json:"created_date"`
	UpdatedAt            time.Time  `json:"updated_date"`
}

// FormOpen reports whether submissions are accepted.  A missing settings
// row means the form has never been locked.
func FormOpen(s *PublishSettings) bool {
	return s == nil || s.IsFormOpen
}

// CloseTimeReached reports whether the scheduled close time has passed while
// the form is still open, which is when admins should lock it manually.
func (s *PublishSettings) CloseTimeReached(now time.Time) bool {
	if s == nil || s.FormCloseDate == nil || !s.IsFormOpen {
		return false
	}
	return !now.Before(*s.FormCloseDate)
}

// HasWindow reports whether both publish window bounds are set.
func (s *PublishSettings) HasWindow() bool {
	return s != nil && s.PublishStart != nil && s.PublishEnd != nil
}

// WindowOpen reports whether now falls inside the publish window.
func (s *PublishSettings) WindowOpen(now time.Time) bool {
	if !s.HasWindow() {
		return false
	}
	return !now.Before(*s.PublishStart) && !now.After(*s.PublishEnd)
}

// ResultsVisible combines the manual override with the window.
func (s *PublishSettings) ResultsVisible(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.IsPublished || s.WindowOpen(now)
}
