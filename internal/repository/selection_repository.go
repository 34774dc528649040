package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

const selectionColumns = `id, numbers, user_email, user_name, nickname, draw_date, created_at,
	edit_until, color_tag, is_published, show_in_history, deleted_by_admin,
	deleted_by_admin_date, deleted_by_admin_name, has_paid, COALESCE(idempotency_key, '')`

// SelectionRepo encapsulates all queries on the lottery_selections table.
type SelectionRepo struct {
	db *sql.DB
}

// NewSelectionRepo constructs a SelectionRepo with the provided DB handle.
func NewSelectionRepo(db *sql.DB) *SelectionRepo { return &SelectionRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSelection(sc rowScanner) (model.Selection, error) {
	var (
		s         model.Selection
		numbers   []byte
		drawDate  time.Time
		color     string
		deletedAt sql.NullTime
	)
	err := sc.Scan(&s.ID, &numbers, &s.UserEmail, &s.UserName, &s.Nickname, &drawDate, &s.CreatedAt,
		&s.EditUntil, &color, &s.IsPublished, &s.ShowInHistory, &s.DeletedByAdmin,
		&deletedAt, &s.DeletedByAdminName, &s.HasPaid, &s.IdempotencyKey)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(numbers, &s.Numbers); err != nil {
		return s, fmt.Errorf("decode numbers of selection %d: %w", s.ID, err)
	}
	s.DrawDate = drawDate.Format("2006-01-02")
	s.ColorTag = model.ColorTag(color)
	if deletedAt.Valid {
		t := deletedAt.Time
		s.DeletedByAdminAt = &t
	}
	return s, nil
}

func collectSelections(rows *sql.Rows) ([]model.Selection, error) {
	defer rows.Close()
	var out []model.Selection
	for rows.Next() {
		s, err := scanSelection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateGuarded inserts sel after check approves the caller's existing rows
// under the same (user_email, nickname).  The rows are read with FOR UPDATE
// inside one transaction, so concurrent creates for the same key serialize
// on the index range lock and check-then-insert is atomic per key.  A
// non-nil error from check aborts the insert and is returned unchanged.
func (r *SelectionRepo) CreateGuarded(ctx context.Context, sel *model.Selection, check func(existing []model.Selection) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+selectionColumns+` FROM lottery_selections
		 WHERE user_email = ? AND nickname = ? FOR UPDATE`,
		sel.UserEmail, sel.Nickname)
	if err != nil {
		return err
	}
	existing, err := collectSelections(rows)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}

	numbers, err := json.Marshal(sel.Numbers)
	if err != nil {
		return err
	}
	var idem any
	if sel.IdempotencyKey != "" {
		idem = sel.IdempotencyKey
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO lottery_selections
		 (numbers, user_email, user_name, nickname, draw_date, created_at, edit_until,
		  color_tag, is_published, show_in_history, idempotency_key)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		numbers, sel.UserEmail, sel.UserName, sel.Nickname, sel.DrawDate, sel.CreatedAt.UTC(),
		sel.EditUntil.UTC(), string(sel.ColorTag), sel.IsPublished, sel.ShowInHistory, idem)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateKey
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	sel.ID = uint64(id)
	return nil
}

// GetByID fetches a selection regardless of owner or moderation state.
func (r *SelectionRepo) GetByID(ctx context.Context, id uint64) (*model.Selection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectionColumns+` FROM lottery_selections WHERE id = ?`, id)
	s, err := scanSelection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByIdempotencyKey returns the selection created by email with key.
func (r *SelectionRepo) FindByIdempotencyKey(ctx context.Context, email, key string) (*model.Selection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectionColumns+` FROM lottery_selections WHERE user_email = ? AND idempotency_key = ?`,
		email, key)
	s, err := scanSelection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns selections matching f, newest first.
func (r *SelectionRepo) List(ctx context.Context, f SelectionFilter) ([]model.Selection, error) {
	where, args := f.where()
	q := `SELECT ` + selectionColumns + ` FROM lottery_selections` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectSelections(rows)
}

// UpdatePick overwrites numbers and nickname.  edit_until and color_tag are
// left untouched.
func (r *SelectionRepo) UpdatePick(ctx context.Context, id uint64, nickname string, numbers []int) error {
	raw, err := json.Marshal(numbers)
	if err != nil {
		return err
	}
	return r.exec(ctx, `UPDATE lottery_selections SET numbers = ?, nickname = ? WHERE id = ?`, raw, nickname, id)
}

// SetColor updates the moderation tag of one row.
func (r *SelectionRepo) SetColor(ctx context.Context, id uint64, color model.ColorTag) error {
	return r.exec(ctx, `UPDATE lottery_selections SET color_tag = ? WHERE id = ?`, string(color), id)
}

// SetPublished sets or clears the public visibility flag of one row.
func (r *SelectionRepo) SetPublished(ctx context.Context, id uint64, published bool) error {
	return r.exec(ctx, `UPDATE lottery_selections SET is_published = ? WHERE id = ?`, published, id)
}

// PublishIfEligible sets is_published only when the row is not red, so a
// concurrent recolor cannot slip a red row onto the results page.
// It returns false when the row was skipped.
func (r *SelectionRepo) PublishIfEligible(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE lottery_selections SET is_published = TRUE WHERE id = ? AND color_tag <> ?`,
		id, string(model.ColorRed))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// RowsAffected is 0 both for red rows and for rows already published.
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return s.IsPublished && s.Publishable(), nil
}

// SetPaid toggles the legacy has_paid flag.
func (r *SelectionRepo) SetPaid(ctx context.Context, id uint64, paid bool) error {
	return r.exec(ctx, `UPDATE lottery_selections SET has_paid = ? WHERE id = ?`, paid, id)
}

// SoftDelete marks the row as deleted by an admin.  The row stays in
// storage and in its owner's history.
func (r *SelectionRepo) SoftDelete(ctx context.Context, id uint64, at time.Time, adminName string) error {
	return r.exec(ctx,
		`UPDATE lottery_selections
		 SET deleted_by_admin = TRUE, deleted_by_admin_date = ?, deleted_by_admin_name = ?
		 WHERE id = ?`, at.UTC(), adminName, id)
}

// HideFromHistory clears show_in_history.
func (r *SelectionRepo) HideFromHistory(ctx context.Context, id uint64) error {
	return r.exec(ctx, `UPDATE lottery_selections SET show_in_history = FALSE WHERE id = ?`, id)
}

// Delete removes the row permanently.
func (r *SelectionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lottery_selections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByEmail returns the number of selections per user email, excluding
// admin-deleted rows.
func (r *SelectionRepo) CountByEmail(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_email, COUNT(*) FROM lottery_selections WHERE deleted_by_admin = FALSE GROUP BY user_email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var email string
		var n int
		if err := rows.Scan(&email, &n); err != nil {
			return nil, err
		}
		out[strings.ToLower(email)] = n
	}
	return out, rows.Err()
}

// CountActiveGreen counts green rows not deleted by an admin.
func (r *SelectionRepo) CountActiveGreen(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lottery_selections WHERE color_tag = ? AND deleted_by_admin = FALSE`,
		string(model.ColorGreen)).Scan(&n)
	return n, err
}

// exec runs a single-row UPDATE and maps "no such row" to ErrNotFound.
// MySQL reports 0 affected rows when the values are unchanged, so a
// follow-up existence check distinguishes the two cases.
func (r *SelectionRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM lottery_selections WHERE id = ?`, args[len(args)-1]).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
