package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
	"github.com/iliyamo/neighborhood-lottery/internal/utils"
)

// ProfileInput carries the self-service profile fields; nil leaves a field
// unchanged.
type ProfileInput struct {
	FullName    *string
	DisplayName *string
	Nickname    *string
	Phone       *string
}

// UserRow is a user with their selection count, for the admin table.
type UserRow struct {
	model.User
	Submissions int `json:"submissions"`
}

// Accounts covers profile edits and admin user management.
type Accounts struct {
	users      UserStore
	tokens     TokenRevoker
	selections SelectionStore
	activity   *Activity
	bcryptCost int
}

func NewAccounts(users UserStore, tokens TokenRevoker, selections SelectionStore, activity *Activity, bcryptCost int) *Accounts {
	return &Accounts{users: users, tokens: tokens, selections: selections, activity: activity, bcryptCost: bcryptCost}
}

func (a *Accounts) Me(ctx context.Context, actor Actor) (*model.User, error) {
	return a.users.GetByID(ctx, actor.ID)
}

func (a *Accounts) UpdateMe(ctx context.Context, actor Actor, in ProfileInput) (*model.User, error) {
	u, err := a.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	full, nick, phone := u.FullName, u.Nickname, u.Phone
	if in.FullName != nil {
		full = strings.TrimSpace(*in.FullName)
		if full == "" {
			return nil, fmt.Errorf("%w: full_name cannot be empty", ErrInvalidInput)
		}
	}
	if in.Nickname != nil {
		nick = strings.TrimSpace(*in.Nickname)
	}
	if in.Phone != nil {
		phone = strings.TrimSpace(*in.Phone)
	}
	if err := a.users.UpdateProfile(ctx, u.ID, full, nick, phone); err != nil {
		return nil, err
	}
	u.FullName, u.Nickname, u.Phone = full, nick, phone
	if in.DisplayName != nil {
		dn := strings.TrimSpace(*in.DisplayName)
		if err := a.users.UpdateDisplayName(ctx, u.ID, dn); err != nil {
			return nil, err
		}
		u.DisplayName = dn
	}
	a.activity.Record(ctx, actor, model.ActionProfileUpdate, "profile updated")
	return u, nil
}

// List returns every user with their selection count.
func (a *Accounts) List(ctx context.Context) ([]UserRow, error) {
	users, err := a.users.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := a.selections.CountByEmail(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserRow, 0, len(users))
	for _, u := range users {
		out = append(out, UserRow{User: u, Submissions: counts[strings.ToLower(u.Email)]})
	}
	return out, nil
}

// SetRole changes a user's role.  The last admin cannot be demoted.
func (a *Accounts) SetRole(ctx context.Context, actor Actor, id uint64, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != model.RoleUser && role != model.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	u, err := a.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.IsAdmin() && role == model.RoleUser {
		if err := a.ensureOtherAdmin(ctx, id); err != nil {
			return err
		}
	}
	if err := a.users.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	a.activity.Record(ctx, actor, model.ActionProfileUpdate, fmt.Sprintf("user %s role=%s", u.Email, role))
	return nil
}

func (a *Accounts) SetGroup(ctx context.Context, actor Actor, id uint64, group string) error {
	group = strings.ToLower(strings.TrimSpace(group))
	if group == "" {
		group = model.GroupNone
	}
	if !model.ValidGroup(group) {
		return fmt.Errorf("%w: unknown group %q", ErrInvalidInput, group)
	}
	if err := a.users.UpdateGroup(ctx, id, group); err != nil {
		return err
	}
	a.activity.Record(ctx, actor, model.ActionProfileUpdate, fmt.Sprintf("user %d group=%s", id, group))
	return nil
}

func (a *Accounts) SetDisplayName(ctx context.Context, actor Actor, id uint64, name string) error {
	name = strings.TrimSpace(name)
	if err := a.users.UpdateDisplayName(ctx, id, name); err != nil {
		return err
	}
	a.activity.Record(ctx, actor, model.ActionProfileUpdate, fmt.Sprintf("user %d display_name=%q", id, name))
	return nil
}

// ResetPassword sets a random password, revokes the user's sessions and
// returns the new password once.
func (a *Accounts) ResetPassword(ctx context.Context, actor Actor, id uint64) (string, error) {
	u, err := a.users.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	plain, err := utils.RandomPassword(12)
	if err != nil {
		return "", err
	}
	hash, err := utils.HashPassword(plain, a.bcryptCost)
	if err != nil {
		return "", err
	}
	if err := a.users.UpdatePassword(ctx, id, hash); err != nil {
		return "", err
	}
	if a.tokens != nil {
		if err := a.tokens.RevokeAllForUser(ctx, id); err != nil {
			return "", err
		}
	}
	a.activity.Record(ctx, actor, model.ActionProfileUpdate, "password reset for "+u.Email)
	return plain, nil
}

// Delete removes a user account.  A missing user counts as deleted; admins
// cannot delete themselves.
func (a *Accounts) Delete(ctx context.Context, actor Actor, id uint64) error {
	if id == actor.ID {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	u, err := a.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.IsAdmin() {
		if err := a.ensureOtherAdmin(ctx, id); err != nil {
			return err
		}
	}
	if err := a.users.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	a.activity.Record(ctx, actor, model.ActionProfileUpdate, "user deleted "+u.Email)
	return nil
}

func (a *Accounts) ensureOtherAdmin(ctx context.Context, id uint64) error {
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.IsAdmin() && u.ID != id {
			return nil
		}
	}
	return ErrLastAdmin
}
