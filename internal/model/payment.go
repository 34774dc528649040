package model

import (
	"errors"
	"time"
)

// ErrInvalidLedger is returned when payment counters are negative or paid
// forms exceed the total.
var ErrInvalidLedger = errors.New("invalid payment values")

// PaymentRecord is the manually maintained ledger row for one user.  It is
// not reconciled with the user's actual selections.
type PaymentRecord struct {
	ID         uint64    `json:"id"`
	UserEmail  string    `json:"user_email"`
	UserName   string    `json:"user_name"`
	TotalForms int       `json:"total_forms_submitted"`
	PaidForms  int       `json:"paid_forms"`
	Notes      string    `json:"notes"`
	UpdatedAt  time.Time `json:"updated_date"`
}

// Unpaid is always derived, never stored.
func (p PaymentRecord) Unpaid() int { return p.TotalForms - p.PaidForms }

// ValidateLedger checks absolute ledger values.
func ValidateLedger(total, paid int) error {
	if total < 0 || paid < 0 || paid > total {
		return ErrInvalidLedger
	}
	return nil
}

// PaidFromUnpaid back-solves the paid counter from an inline unpaid edit.
func PaidFromUnpaid(total, unpaid int) (int, error) {
	if unpaid < 0 || unpaid > total {
		return 0, ErrInvalidLedger
	}
	return total - unpaid, nil
}
