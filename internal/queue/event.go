// Package queue defines message payloads exchanged over the message broker.
package queue

// Selection event kinds.
const (
	SelectionSubmitted = "submitted"
	SelectionEdited    = "edited"
	SelectionResent    = "resent"
	SelectionDeleted   = "deleted"
)

// SelectionEvent is published whenever a user changes one of their
// selections.  It carries enough to audit the change without querying the
// primary database.
type SelectionEvent struct {
	Kind        string `json:"kind"`
	SelectionID uint64 `json:"selection_id"`
	UserID      uint64 `json:"user_id"`
	UserEmail   string `json:"user_email"`
	Nickname    string `json:"nickname"`
	Numbers     []int  `json:"numbers"`
	OccurredAt  string `json:"occurred_at"`
}
