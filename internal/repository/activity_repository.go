package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// ActivityFilter narrows the admin activity view.
type ActivityFilter struct {
	Action string
	Search string // substring of user name, email or details
	Limit  int
}

// ActivityRepo appends to and reads activity_logs.
type ActivityRepo struct {
	db *sql.DB
}

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// Append inserts an entry.  Entries are never updated.
func (r *ActivityRepo) Append(ctx context.Context, e *model.ActivityLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, user_email, user_name, action, details, created_at)
		 VALUES (?,?,?,?,?,?)`,
		e.UserID, e.UserEmail, e.UserName, e.Action, e.Details, e.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// List returns the newest entries matching f (default 100).
func (r *ActivityRepo) List(ctx context.Context, f ActivityFilter) ([]model.ActivityLog, error) {
	var conds []string
	var args []any
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, f.Action)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + escapeLike(strings.ToLower(q)) + "%"
		conds = append(conds, "(LOWER(user_name) LIKE ? OR LOWER(user_email) LIKE ? OR LOWER(details) LIKE ?)")
		args = append(args, like, like, like)
	}
	q := `SELECT id, user_id, user_email, user_name, action, COALESCE(details, ''), created_at FROM activity_logs`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ActivityLog
	for rows.Next() {
		var e model.ActivityLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &e.UserName, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
