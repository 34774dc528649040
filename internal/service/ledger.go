package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// LedgerEntry is a payment record with its derived unpaid count.
type LedgerEntry struct {
	UserEmail   string `json:"user_email"`
	UserName    string `json:"user_name"`
	TotalForms  int    `json:"total_forms_submitted"`
	PaidForms   int    `json:"paid_forms"`
	Unpaid      int    `json:"unpaid"`
	Notes       string `json:"notes"`
	Submissions int    `json:"submissions"`
}

func entryOf(p *model.PaymentRecord) LedgerEntry {
	return LedgerEntry{
		UserEmail:  p.UserEmail,
		UserName:   p.UserName,
		TotalForms: p.TotalForms,
		PaidForms:  p.PaidForms,
		Unpaid:     p.Unpaid(),
		Notes:      p.Notes,
	}
}

// Ledger maintains the manual payment records.  Values are entered by
// admins and never reconciled with actual selections.
type Ledger struct {
	store      PaymentStore
	users      UserStore
	selections SelectionStore
}

func NewLedger(store PaymentStore, users UserStore, selections SelectionStore) *Ledger {
	return &Ledger{store: store, users: users, selections: selections}
}

// Get returns the record of email; a missing record reads as zeros.
func (l *Ledger) Get(ctx context.Context, email string) (LedgerEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := l.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return LedgerEntry{UserEmail: email}, nil
	}
	if err != nil {
		return LedgerEntry{}, err
	}
	return entryOf(p), nil
}

// Set stores absolute values for email.
func (l *Ledger) Set(ctx context.Context, email, name string, total, paid int, notes string) (LedgerEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return LedgerEntry{}, ErrInvalidInput
	}
	if err := model.ValidateLedger(total, paid); err != nil {
		return LedgerEntry{}, err
	}
	p := &model.PaymentRecord{UserEmail: email, UserName: name, TotalForms: total, PaidForms: paid, Notes: notes}
	if p.UserName == "" {
		if prev, err := l.store.GetByEmail(ctx, email); err == nil {
			p.UserName = prev.UserName
		}
	}
	if err := l.store.Upsert(ctx, p); err != nil {
		return LedgerEntry{}, err
	}
	return entryOf(p), nil
}

// SetUnpaid back-solves paid from an unpaid count, keeping total and notes.
func (l *Ledger) SetUnpaid(ctx context.Context, email string, unpaid int) (LedgerEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := l.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		p = &model.PaymentRecord{UserEmail: email}
	} else if err != nil {
		return LedgerEntry{}, err
	}
	paid, err := model.PaidFromUnpaid(p.TotalForms, unpaid)
	if err != nil {
		return LedgerEntry{}, err
	}
	p.PaidForms = paid
	if err := l.store.Upsert(ctx, p); err != nil {
		return LedgerEntry{}, err
	}
	return entryOf(p), nil
}

// List returns one entry per known user plus any ledger rows whose user no
// longer exists, with each user's current selection count.
func (l *Ledger) List(ctx context.Context) ([]LedgerEntry, error) {
	records, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	users, err := l.users.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := l.selections.CountByEmail(ctx)
	if err != nil {
		return nil, err
	}

	byEmail := make(map[string]LedgerEntry, len(records))
	for i := range records {
		byEmail[strings.ToLower(records[i].UserEmail)] = entryOf(&records[i])
	}
	for _, u := range users {
		email := strings.ToLower(u.Email)
		e, ok := byEmail[email]
		if !ok {
			e = LedgerEntry{UserEmail: email}
		}
		if e.UserName == "" {
			e.UserName = u.Name()
		}
		byEmail[email] = e
	}
	out := make([]LedgerEntry, 0, len(byEmail))
	for email, e := range byEmail {
		e.Submissions = counts[email]
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserEmail < out[j].UserEmail })
	return out, nil
}
