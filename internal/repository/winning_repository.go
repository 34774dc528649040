package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// WinningRepo stores published draws in the winning_numbers table.
type WinningRepo struct {
	db *sql.DB
}

func NewWinningRepo(db *sql.DB) *WinningRepo { return &WinningRepo{db: db} }

const winningColumns = `id, numbers, draw_date, week_description, published_by_admin_id,
	published_by_admin_name, is_active, created_at`

func scanWinning(sc rowScanner) (model.WinningNumbers, error) {
	var (
		w        model.WinningNumbers
		raw      []byte
		drawDate time.Time
	)
	if err := sc.Scan(&w.ID, &raw, &drawDate, &w.WeekDescription, &w.PublishedByAdminID,
		&w.PublishedByAdminName, &w.IsActive, &w.CreatedAt); err != nil {
		return w, err
	}
	if err := json.Unmarshal(raw, &w.Numbers); err != nil {
		return w, fmt.Errorf("decode winning numbers %d: %w", w.ID, err)
	}
	w.DrawDate = drawDate.Format("2006-01-02")
	return w, nil
}

// Create inserts a draw and populates its ID and CreatedAt.
func (r *WinningRepo) Create(ctx context.Context, w *model.WinningNumbers) error {
	raw, err := json.Marshal(w.Numbers)
	if err != nil {
		return err
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO winning_numbers
		 (numbers, draw_date, week_description, published_by_admin_id, published_by_admin_name, is_active, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		raw, w.DrawDate, w.WeekDescription, w.PublishedByAdminID, w.PublishedByAdminName, w.IsActive, w.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = uint64(id)
	return nil
}

// ListRecent returns up to limit draws, newest first.
func (r *WinningRepo) ListRecent(ctx context.Context, limit int) ([]model.WinningNumbers, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+winningColumns+` FROM winning_numbers ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WinningNumbers
	for rows.Next() {
		w, err := scanWinning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Current returns the newest draw, or nil when none was published yet.
func (r *WinningRepo) Current(ctx context.Context) (*model.WinningNumbers, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+winningColumns+` FROM winning_numbers ORDER BY created_at DESC, id DESC LIMIT 1`)
	w, err := scanWinning(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// Delete removes a draw.
func (r *WinningRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM winning_numbers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
