package service

import (
	"context"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/queue"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// SelectionStore is implemented by repository.SelectionRepo.
type SelectionStore interface {
	// CreateGuarded runs check over the caller's rows with the same
	// nickname and inserts sel only if check returns nil.  Both steps are
	// atomic with respect to other creates for that (email, nickname).
	CreateGuarded(ctx context.Context, sel *model.Selection, check func(existing []model.Selection) error) error
	GetByID(ctx context.Context, id uint64) (*model.Selection, error)
	FindByIdempotencyKey(ctx context.Context, email, key string) (*model.Selection, error)
	List(ctx context.Context, f repository.SelectionFilter) ([]model.Selection, error)
	UpdatePick(ctx context.Context, id uint64, nickname string, numbers []int) error
	SetColor(ctx context.Context, id uint64, color model.ColorTag) error
	SetPublished(ctx context.Context, id uint64, published bool) error
	PublishIfEligible(ctx context.Context, id uint64) (bool, error)
	SetPaid(ctx context.Context, id uint64, paid bool) error
	SoftDelete(ctx context.Context, id uint64, at time.Time, adminName string) error
	HideFromHistory(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) error
	CountByEmail(ctx context.Context) (map[string]int, error)
	CountActiveGreen(ctx context.Context) (int, error)
}

type WinningStore interface {
	Create(ctx context.Context, w *model.WinningNumbers) error
	ListRecent(ctx context.Context, limit int) ([]model.WinningNumbers, error)
	Current(ctx context.Context) (*model.WinningNumbers, error)
	Delete(ctx context.Context, id uint64) error
}

type SettingsStore interface {
	Latest(ctx context.Context) (*model.PublishSettings, error)
	Save(ctx context.Context, s *model.PublishSettings) error
}

type PaymentStore interface {
	GetByEmail(ctx context.Context, email string) (*model.PaymentRecord, error)
	Upsert(ctx context.Context, p *model.PaymentRecord) error
	List(ctx context.Context) ([]model.PaymentRecord, error)
}

type ActivityStore interface {
	Append(ctx context.Context, e *model.ActivityLog) error
	List(ctx context.Context, f repository.ActivityFilter) ([]model.ActivityLog, error)
}

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, id uint64, fullName, nickname, phone string) error
	UpdateRole(ctx context.Context, id uint64, role string) error
	UpdateGroup(ctx context.Context, id uint64, group string) error
	UpdateDisplayName(ctx context.Context, id uint64, name string) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	Delete(ctx context.Context, id uint64) error
}

// EventPublisher is implemented by queue.Publisher.
type EventPublisher interface {
	PublishSelection(ctx context.Context, ev queue.SelectionEvent) error
}

// TokenRevoker is implemented by repository.TokenRepo.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}
