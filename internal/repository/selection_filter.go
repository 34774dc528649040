package repository

import (
	"strings"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// SelectionFilter narrows selection listings.  Zero values mean "no
// constraint" except IncludeAdminDeleted, which must be set explicitly to see
// rows hidden by admin moderation.
type SelectionFilter struct {
	IDs                 []uint64
	UserEmail           string
	Nicknames           []string
	Color               model.ColorTag
	From                *time.Time
	To                  *time.Time
	Search              string // case-insensitive substring of nickname or user_name
	PublishedOnly       bool
	HistoryOnly         bool // show_in_history = true
	IncludeAdminDeleted bool
	Limit               int
}

// Match applies the filter to a row already in memory.  It mirrors the SQL
// produced by where() and is used by in-process callers that hold rows.
func (f SelectionFilter) Match(s *model.Selection) bool {
	if !f.IncludeAdminDeleted && s.DeletedByAdmin {
		return false
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, s.ID) {
		return false
	}
	if f.UserEmail != "" && !strings.EqualFold(f.UserEmail, s.UserEmail) {
		return false
	}
	if len(f.Nicknames) > 0 && !containsString(f.Nicknames, s.Nickname) {
		return false
	}
	if f.Color != "" && f.Color != s.ColorTag {
		return false
	}
	if f.From != nil && s.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && s.CreatedAt.After(*f.To) {
		return false
	}
	if f.PublishedOnly && !s.IsPublished {
		return false
	}
	if f.HistoryOnly && !s.ShowInHistory {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(s.Nickname), q) && !strings.Contains(strings.ToLower(s.UserName), q) {
			return false
		}
	}
	return true
}

func (f SelectionFilter) where() (string, []any) {
	var conds []string
	var args []any
	if !f.IncludeAdminDeleted {
		conds = append(conds, "deleted_by_admin = FALSE")
	}
	if len(f.IDs) > 0 {
		conds = append(conds, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.UserEmail != "" {
		conds = append(conds, "user_email = ?")
		args = append(args, strings.ToLower(f.UserEmail))
	}
	if len(f.Nicknames) > 0 {
		conds = append(conds, "nickname IN ("+placeholders(len(f.Nicknames))+")")
		for _, n := range f.Nicknames {
			args = append(args, n)
		}
	}
	if f.Color != "" {
		conds = append(conds, "color_tag = ?")
		args = append(args, string(f.Color))
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	if f.PublishedOnly {
		conds = append(conds, "is_published = TRUE")
	}
	if f.HistoryOnly {
		conds = append(conds, "show_in_history = TRUE")
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		conds = append(conds, "(LOWER(nickname) LIKE ? OR LOWER(user_name) LIKE ?)")
		like := "%" + escapeLike(strings.ToLower(q)) + "%"
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
