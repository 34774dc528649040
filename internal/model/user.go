package model

import "time"

// Roles stored in users.role and in the JWT "role" claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Groups used to order the admin submissions report.  Unknown groups sort
// after GroupNone.
const (
	GroupNone = "none"
)

var groupOrder = map[string]int{
	"group1":  1,
	"group2":  2,
	"group3":  3,
	"group4":  4,
	GroupNone: 5,
}

// ValidGroup reports whether g is one of the known neighborhood groups.
func ValidGroup(g string) bool {
	_, ok := groupOrder[g]
	return ok
}

// GroupRank returns the report sort position of group g.
func GroupRank(g string) int {
	if g == "" {
		g = GroupNone
	}
	if r, ok := groupOrder[g]; ok {
		return r
	}
	return 99
}

// User represents an application user record as stored in the `users`
// table.
//
// Fields:
//
//	Email        – unique, normalized to lower case.
//	PasswordHash – bcrypt hash, never serialized.
//	FullName     – name given at registration.
//	DisplayName  – optional admin- or user-chosen name shown in reports.
//	Group        – neighborhood group (group1..group4 or none).
//	Role         – user or admin.
//	LastLogin    – set on every successful login; nil for never-logged-in users.
type User struct {
	ID           uint64     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	DisplayName  string     `json:"display_name,omitempty"`
	Nickname     string     `json:"nickname,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Group        string     `json:"group"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_date"`
	UpdatedAt    time.Time  `json:"updated_date"`
}

// Name returns the display name, falling back to the full name.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.FullName
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
