package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, email, password_hash, full_name, display_name, nickname, phone,
	user_group, role, is_active, last_login, created_at, updated_at`

func scanUser(sc rowScanner) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := sc.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.DisplayName, &u.Nickname, &u.Phone,
		&u.Group, &u.Role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.LastLogin = nullTimePtr(lastLogin)
	return &u, nil
}

// Create hashes password and inserts u, filling in its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.Group == "" {
		u.Group = model.GroupNone
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, full_name, nickname, phone, user_group, role)
		 VALUES (?,?,?,?,?,?,?)`,
		u.Email, hash, u.FullName, u.Nickname, u.Phone, u.Group, u.Role)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.PasswordHash = hash
	u.IsActive = true
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns all users ordered by email.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY email")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateProfile stores the self-service profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fullName, nickname, phone string) error {
	return r.exec(ctx, "UPDATE users SET full_name=?, nickname=?, phone=? WHERE id=?", fullName, nickname, phone, id)
}

func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	return r.exec(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
}

func (r *UserRepo) UpdateGroup(ctx context.Context, id uint64, group string) error {
	return r.exec(ctx, "UPDATE users SET user_group=? WHERE id=?", group, id)
}

func (r *UserRepo) UpdateDisplayName(ctx context.Context, id uint64, name string) error {
	return r.exec(ctx, "UPDATE users SET display_name=? WHERE id=?", name, id)
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return r.exec(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login=? WHERE id=?", at.UTC(), id)
	return err
}

// Delete removes the account.  Refresh tokens go with it via the foreign
// key; selections are keyed by email and stay.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", args[len(args)-1]).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
