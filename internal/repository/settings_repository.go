package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// SettingsRepo reads and writes publish_settings.  Only the newest row is
// ever consulted; Save updates it in place once it exists.
type SettingsRepo struct {
	db *sql.DB
}

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Latest returns the newest settings row, or nil when none exists.
func (r *SettingsRepo) Latest(ctx context.Context) (*model.PublishSettings, error) {
	var (
		s                       model.PublishSettings
		closeAt, startAt, endAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, is_form_open, form_close_date, form_locked_by_admin_id, form_locked_by_admin_name,
		        publish_start_date, publish_end_date, is_published, published_by_admin_id,
		        published_by_admin_name, created_at, updated_at
		 FROM publish_settings ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&s.ID, &s.IsFormOpen, &closeAt, &s.FormLockedByAdminID, &s.FormLockedByAdmin,
			&startAt, &endAt, &s.IsPublished, &s.PublishedByAdminID, &s.PublishedByAdminName,
			&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.FormCloseDate = nullTimePtr(closeAt)
	s.PublishStart = nullTimePtr(startAt)
	s.PublishEnd = nullTimePtr(endAt)
	return &s, nil
}

// Save inserts s when it has no ID yet, otherwise overwrites the row.
func (r *SettingsRepo) Save(ctx context.Context, s *model.PublishSettings) error {
	if s.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO publish_settings
			 (is_form_open, form_close_date, form_locked_by_admin_id, form_locked_by_admin_name,
			  publish_start_date, publish_end_date, is_published, published_by_admin_id, published_by_admin_name)
			 VALUES (?,?,?,?,?,?,?,?,?)`,
			s.IsFormOpen, timePtrArg(s.FormCloseDate), s.FormLockedByAdminID, s.FormLockedByAdmin,
			timePtrArg(s.PublishStart), timePtrArg(s.PublishEnd), s.IsPublished,
			s.PublishedByAdminID, s.PublishedByAdminName)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		s.ID = uint64(id)
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_settings SET
		   is_form_open = ?, form_close_date = ?, form_locked_by_admin_id = ?, form_locked_by_admin_name = ?,
		   publish_start_date = ?, publish_end_date = ?, is_published = ?,
		   published_by_admin_id = ?, published_by_admin_name = ?
		 WHERE id = ?`,
		s.IsFormOpen, timePtrArg(s.FormCloseDate), s.FormLockedByAdminID, s.FormLockedByAdmin,
		timePtrArg(s.PublishStart), timePtrArg(s.PublishEnd), s.IsPublished,
		s.PublishedByAdminID, s.PublishedByAdminName, s.ID)
	return err
}
