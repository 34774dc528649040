package model

import "time"

// WinningNumbers represents a draw published by an admin.  Consumers treat
// the most recently created row as the current draw.
type WinningNumbers struct {
	ID                   uint64    `json:"id"`
	Numbers              []int     `json:"numbers"`
	DrawDate             string    `json:"draw_date"`
	WeekDescription      string    `json:"week_description"`
	PublishedByAdminID   uint64    `json:"published_by_admin_id"`
	PublishedByAdminName string    `json:"published_by_admin_name"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_date"`
}
