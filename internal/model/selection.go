package model

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Lottery number rules.  A selection (and a winning draw) is always a set of
// PickSize distinct integers in [MinNumber, MaxNumber].
const (
	PickSize  = 6
	MinNumber = 1
	MaxNumber = 37
)

// ColorTag is the admin moderation state of a selection.
type ColorTag string

const (
	ColorGreen  ColorTag = "green"  // default, active and not yet processed
	ColorYellow ColorTag = "yellow" // fixed numbers, informational only
	ColorRed    ColorTag = "red"    // excluded from publishing, re-opens resend
)

// ParseColorTag normalizes s and reports whether it is a known tag.
func ParseColorTag(s string) (ColorTag, bool) {
	switch ColorTag(strings.ToLower(strings.TrimSpace(s))) {
	case ColorGreen:
		return ColorGreen, true
	case ColorYellow:
		return ColorYellow, true
	case ColorRed:
		return ColorRed, true
	}
	return "", false
}

var (
	// ErrInvalidNumbers is returned when a pick is not 6 distinct numbers in range.
	ErrInvalidNumbers = errors.New("exactly 6 distinct numbers between 1 and 37 are required")
	// ErrNicknameRequired is returned when the nickname is blank.
	ErrNicknameRequired = errors.New("nickname is required")
	// ErrNicknameTooLong is returned when the nickname exceeds MaxNicknameLen.
	ErrNicknameTooLong = errors.New("nickname must be at most 255 characters")
)

// MaxNicknameLen is the nickname column width, in characters.
const MaxNicknameLen = 255

// Selection mirrors a row of the `lottery_selections` table.
//
// Fields:
//
//	Numbers        – the 6 picked numbers, stored as a JSON array.
//	EditUntil      – created + edit window; the owner may edit until then.
//	ColorTag       – admin moderation tag, green on creation.
//	IsPublished    – shown on the public results page when true.
//	ShowInHistory  – false hides the row from the owner's history only.
//	DeletedByAdmin – soft delete by an admin; hidden from admin views only.
//	HasPaid        – legacy manual payment flag.
type Selection struct {
	ID                 uint64     `json:"id"`
	Numbers            []int      `json:"numbers"`
	UserEmail          string     `json:"user_email"`
	UserName           string     `json:"user_name"`
	Nickname           string     `json:"nickname"`
	DrawDate           string     `json:"draw_date"`
	CreatedAt          time.Time  `json:"created_date"`
	EditUntil          time.Time  `json:"edit_until"`
	ColorTag           ColorTag   `json:"color_tag"`
	IsPublished        bool       `json:"is_published"`
	ShowInHistory      bool       `json:"show_in_history"`
	DeletedByAdmin     bool       `json:"deleted_by_admin"`
	DeletedByAdminAt   *time.Time `json:"deleted_by_admin_date,omitempty"`
	DeletedByAdminName string     `json:"deleted_by_admin_name,omitempty"`
	HasPaid            bool       `json:"has_paid"`
	IdempotencyKey     string     `json:"-"`
}

// Editable reports whether the owner may still edit the selection at now.
// The window is inclusive of EditUntil itself.
func (s *Selection) Editable(now time.Time) bool {
	return !now.After(s.EditUntil)
}

// BlocksResend reports whether s prevents a resend under nickname: an
// active green row with exactly that nickname that an admin has not
// soft-deleted.  Nicknames compare case-sensitively.
func (s *Selection) BlocksResend(nickname string) bool {
	return s.Nickname == nickname && s.ColorTag == ColorGreen && !s.DeletedByAdmin
}

// Publishable reports whether a bulk publish may set IsPublished on s.
func (s *Selection) Publishable() bool {
	return s.ColorTag != ColorRed
}

// IsDuplicateOf reports whether s has the given nickname and number set and
// was created at or after since.
func (s *Selection) IsDuplicateOf(nickname string, numbers []int, since time.Time) bool {
	return s.Nickname == nickname && SameNumbers(s.Numbers, numbers) && !s.CreatedAt.Before(since)
}

// ValidatePick checks the nickname and numbers of a submission and returns
// the trimmed nickname and a sorted copy of the numbers.
func ValidatePick(nickname string, numbers []int) (string, []int, error) {
	nick := strings.TrimSpace(nickname)
	if nick == "" {
		return "", nil, ErrNicknameRequired
	}
	if utf8.RuneCountInString(nick) > MaxNicknameLen {
		return "", nil, ErrNicknameTooLong
	}
	sorted, err := NormalizeNumbers(numbers)
	if err != nil {
		return "", nil, err
	}
	return nick, sorted, nil
}

// NormalizeNumbers validates a 6-number set and returns it sorted ascending.
func NormalizeNumbers(numbers []int) ([]int, error) {
	if len(numbers) != PickSize {
		return nil, ErrInvalidNumbers
	}
	seen := make(map[int]struct{}, PickSize)
	out := make([]int, 0, PickSize)
	for _, n := range numbers {
		if n < MinNumber || n > MaxNumber {
			return nil, ErrInvalidNumbers
		}
		if _, dup := seen[n]; dup {
			return nil, ErrInvalidNumbers
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// SameNumbers reports whether a and b hold the same set of numbers,
// regardless of order.
func SameNumbers(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}

// Matches returns how many of picked appear in winning.
func Matches(picked, winning []int) int {
	if len(winning) == 0 {
		return 0
	}
	set := make(map[int]struct{}, len(winning))
	for _, n := range winning {
		set[n] = struct{}{}
	}
	count := 0
	for _, n := range picked {
		if _, ok := set[n]; ok {
			count++
		}
	}
	return count
}
