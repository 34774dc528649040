// Package service holds the lottery business rules: the submission
// lifecycle, the admin gates, moderation, the payment ledger and the bulk
// job runner.  Persistence is reached through the small store interfaces in
// stores.go; the MySQL repositories satisfy them.
package service

import (
	"errors"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// Errors whose text doubles as the machine-readable error code returned by
// the HTTP layer.
var (
	ErrRateLimited         = errors.New("BLOCKED_BY_RATE_LIMIT")
	ErrDuplicateSubmission = errors.New("DUPLICATE_SUBMISSION")
	ErrGreenExists         = errors.New("GREEN_SELECTION_EXISTS")
	ErrFormLocked          = errors.New("FORM_LOCKED")
	ErrEditWindowClosed    = errors.New("EDIT_WINDOW_CLOSED")
	ErrJobRunning          = errors.New("JOB_ALREADY_RUNNING")
	ErrNoSettings          = errors.New("NO_SETTINGS")
	ErrNoPublishWindow     = errors.New("NO_PUBLISH_WINDOW")
	ErrInvalidWindow       = errors.New("INVALID_PUBLISH_WINDOW")
	ErrInvalidInput        = errors.New("INVALID_INPUT")
	ErrLastAdmin           = errors.New("LAST_ADMIN")
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    uint64
	Email string
	Name  string
	Role  string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, model.ErrInvalidNumbers) ||
		errors.Is(err, model.ErrNicknameRequired) ||
		errors.Is(err, model.ErrNicknameTooLong) ||
		errors.Is(err, model.ErrInvalidLedger) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidWindow)
}
