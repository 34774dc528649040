package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/utils"
)

func TestUpdateMe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dn, phone := "Papa", " 050-1234567 "
	u, err := f.acct.UpdateMe(ctx, dad, ProfileInput{DisplayName: &dn, Phone: &phone})
	if err != nil {
		t.Fatal(err)
	}
	if u.DisplayName != "Papa" || u.Phone != "050-1234567" || u.FullName != "Dad" {
		t.Fatalf("user = %+v", u)
	}
	empty := " "
	if _, err := f.acct.UpdateMe(ctx, dad, ProfileInput{FullName: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank full name: %v", err)
	}
}

func TestRoleAndGroupChanges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.acct.SetRole(ctx, admin, admin.ID, model.RoleUser); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("demote last admin: %v", err)
	}
	if err := f.acct.SetRole(ctx, admin, mom.ID, "owner"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown role: %v", err)
	}
	if err := f.acct.SetRole(ctx, admin, mom.ID, "ADMIN"); err != nil {
		t.Fatal(err)
	}
	if err := f.acct.SetRole(ctx, admin, admin.ID, model.RoleUser); err != nil {
		t.Fatalf("demote with another admin present: %v", err)
	}

	if err := f.acct.SetGroup(ctx, admin, dad.ID, "group9"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown group: %v", err)
	}
	if err := f.acct.SetGroup(ctx, admin, dad.ID, "group4"); err != nil {
		t.Fatal(err)
	}
	u, _ := f.users.GetByID(ctx, dad.ID)
	if u.Group != "group4" {
		t.Fatalf("group = %s", u.Group)
	}
}

func TestResetPasswordAndDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plain, err := f.acct.ResetPassword(ctx, admin, dad.ID)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := f.users.GetByID(ctx, dad.ID)
	if len(plain) != 12 || !utils.VerifyPassword(u.PasswordHash, plain) {
		t.Fatal("new password not stored")
	}
	if len(f.tokens.revoked) != 1 || f.tokens.revoked[0] != dad.ID {
		t.Fatalf("sessions not revoked: %v", f.tokens.revoked)
	}

	if err := f.acct.Delete(ctx, admin, admin.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("self delete: %v", err)
	}
	if err := f.acct.Delete(ctx, admin, dad.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.acct.Delete(ctx, admin, dad.ID); err != nil {
		t.Fatalf("deleting a missing user must succeed: %v", err)
	}

	rows, err := f.acct.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("users = %d", len(rows))
	}
}
