package model

import "time"

// Activity log actions.
const (
	ActionLogin                 = "login"
	ActionLogout                = "logout"
	ActionLotterySubmission     = "lottery_submission"
	ActionProfileUpdate         = "profile_update"
	ActionSubmissionDeleted     = "lottery_submission_deleted"
	ActionSubmissionDeletedBulk = "lottery_submission_deleted_bulk_individual"
	ActionWinningNumbers        = "winning_numbers"
	ActionPublish               = "publish"
)

// ActivityLog is an append-only audit entry.
type ActivityLog struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	UserEmail string    `json:"user_email"`
	UserName  string    `json:"user_name"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_date"`
}
