package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// PaymentRepo stores the manual payment ledger.
type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// GetByEmail returns the ledger row of email or ErrNotFound.
func (r *PaymentRepo) GetByEmail(ctx context.Context, email string) (*model.PaymentRecord, error) {
	var p model.PaymentRecord
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_email, user_name, total_forms_submitted, paid_forms, notes, updated_at
		 FROM user_payment_records WHERE user_email = ?`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&p.ID, &p.UserEmail, &p.UserName, &p.TotalForms, &p.PaidForms, &notes, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Notes = notes.String
	return &p, nil
}

// Upsert writes absolute ledger values in a single statement keyed by the
// unique user_email, so concurrent admins cannot create two rows.
func (r *PaymentRepo) Upsert(ctx context.Context, p *model.PaymentRecord) error {
	p.UserEmail = strings.ToLower(strings.TrimSpace(p.UserEmail))
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_payment_records (user_email, user_name, total_forms_submitted, paid_forms, notes)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   user_name = VALUES(user_name),
		   total_forms_submitted = VALUES(total_forms_submitted),
		   paid_forms = VALUES(paid_forms),
		   notes = VALUES(notes)`,
		p.UserEmail, p.UserName, p.TotalForms, p.PaidForms, p.Notes)
	return err
}

// List returns every ledger row ordered by email.
func (r *PaymentRepo) List(ctx context.Context) ([]model.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_email, user_name, total_forms_submitted, paid_forms, notes, updated_at
		 FROM user_payment_records ORDER BY user_email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PaymentRecord
	for rows.Next() {
		var p model.PaymentRecord
		var notes sql.NullString
		if err := rows.Scan(&p.ID, &p.UserEmail, &p.UserName, &p.TotalForms, &p.PaidForms, &notes, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Notes = notes.String
		out = append(out, p)
	}
	return out, rows.Err()
}
