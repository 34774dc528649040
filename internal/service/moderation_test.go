package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

func TestReportOrdersByGroupThenNickname(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()
	// dad is group2, mom is group1, the stranger has no user row.
	f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "zed", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Abe", Numbers: pick, ColorTag: model.ColorRed, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Mom", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: "stranger@example.com", Nickname: "Abe", Numbers: pick, ColorTag: model.ColorYellow, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Gone", Numbers: pick, DeletedByAdmin: true, CreatedAt: now})

	rep, err := f.mod.Report(ctx, repository.SelectionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range rep.Rows {
		got = append(got, r.Group+"/"+r.Nickname)
	}
	want := []string{"group1/Mom", "group2/Abe", "group2/zed", "none/Abe"}
	if len(got) != len(want) {
		t.Fatalf("rows = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows = %v, want %v", got, want)
		}
	}
	if rep.ReminderDue {
		t.Fatal("Monday is not the reminder day")
	}
	if rep.Colors[model.ColorGreen] != 2 || rep.Colors[model.ColorRed] != 1 {
		t.Fatalf("colors = %v", rep.Colors)
	}
	for _, g := range rep.Nicknames {
		if g.Nickname == "Abe" && (g.Count != 2 || len(g.IDs) != 2) {
			t.Fatalf("Abe group = %+v", g)
		}
	}

	f.clock.Advance(48 * time.Hour)
	rep, _ = f.mod.Report(ctx, repository.SelectionFilter{})
	if !rep.ReminderDue {
		t.Fatal("Wednesday must flag the reminder")
	}
}

func TestColorOperations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()
	a := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})
	b := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})
	c := f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Mom", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})
	d := f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Mom", Numbers: pick, ColorTag: model.ColorGreen, DeletedByAdmin: true, CreatedAt: now})

	job, err := f.mod.ColorNicknames(ctx, []string{" Dad ", "Dad"}, model.ColorYellow)
	if err != nil {
		t.Fatal(err)
	}
	if p := job.Wait(); p.Total != 2 || p.Error != "" {
		t.Fatalf("progress = %+v", p)
	}
	if f.selections.get(a.ID).ColorTag != model.ColorYellow || f.selections.get(b.ID).ColorTag != model.ColorYellow {
		t.Fatal("nickname color not applied")
	}

	job, err = f.mod.ColorSelected(ctx, []uint64{c.ID}, model.ColorRed)
	if err != nil {
		t.Fatal(err)
	}
	job.Wait()
	if f.selections.get(c.ID).ColorTag != model.ColorRed {
		t.Fatal("selected color not applied")
	}

	job, err = f.mod.TurnAllRed(ctx, repository.SelectionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if p := job.Wait(); p.Total != 2 {
		t.Fatalf("turn all red touched %d rows", p.Total)
	}
	for _, id := range []uint64{a.ID, b.ID, c.ID} {
		if f.selections.get(id).ColorTag != model.ColorRed {
			t.Fatalf("row %d not red", id)
		}
	}
	if f.selections.get(d.ID).ColorTag != model.ColorGreen {
		t.Fatal("admin-deleted rows must be left alone")
	}

	if _, err := f.mod.ColorNicknames(ctx, []string{"  "}, model.ColorRed); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank nicknames: %v", err)
	}
}

func TestAdminDeleteIsSoft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()
	a := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ShowInHistory: true, CreatedAt: now})
	b := f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Mom", Numbers: pick, ShowInHistory: true, CreatedAt: now})
	c := f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Kid", Numbers: pick, ShowInHistory: true, CreatedAt: now})

	if err := f.mod.Delete(ctx, admin, a.ID); err != nil {
		t.Fatal(err)
	}
	row := f.selections.get(a.ID)
	if !row.DeletedByAdmin || row.DeletedByAdminName != "Admin" || row.DeletedByAdminAt == nil || !row.DeletedByAdminAt.Equal(now) {
		t.Fatalf("soft delete fields = %+v", row)
	}

	job, err := f.mod.DeleteNicknames(ctx, admin, []string{"Mom"})
	if err != nil {
		t.Fatal(err)
	}
	job.Wait()
	job, err = f.mod.DeleteSelected(ctx, admin, []uint64{c.ID})
	if err != nil {
		t.Fatal(err)
	}
	job.Wait()

	for _, id := range []uint64{a.ID, b.ID, c.ID} {
		if !f.selections.get(id).DeletedByAdmin {
			t.Fatalf("row %d not soft-deleted", id)
		}
	}
	rep, _ := f.mod.Report(ctx, repository.SelectionFilter{})
	if len(rep.Rows) != 0 {
		t.Fatal("admin-deleted rows must disappear from the report")
	}
	hist, _ := f.sel.History(ctx, mom)
	if len(hist) != 2 {
		t.Fatalf("owner history = %d rows", len(hist))
	}

	acts := f.activity.actions()
	want := []string{model.ActionSubmissionDeleted, model.ActionSubmissionDeletedBulk, model.ActionSubmissionDeletedBulk}
	if len(acts) != len(want) {
		t.Fatalf("activity = %v", acts)
	}
	for i := range want {
		if acts[i] != want[i] {
			t.Fatalf("activity = %v", acts)
		}
	}

	if err := f.mod.Delete(ctx, admin, 999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing row: %v", err)
	}
}

func TestSetPaidAndStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()
	a := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorRed, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Mom", Numbers: pick, ColorTag: model.ColorGreen, DeletedByAdmin: true, CreatedAt: now})
	_ = f.users.update(1, func(u *model.User) { u.LastLogin = &now })

	if err := f.mod.SetPaid(ctx, a.ID, true); err != nil {
		t.Fatal(err)
	}
	if !f.selections.get(a.ID).HasPaid {
		t.Fatal("has_paid not set")
	}

	st, err := f.mod.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{TotalUsers: 3, Admins: 1, ActiveSelections: 1, ActiveUsers: 1, TotalSubmissions: 2, UsersWithoutPicks: 2}
	if *st != want {
		t.Fatalf("stats = %+v, want %+v", *st, want)
	}
}

func TestModerationPurgesResults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()
	var purges int
	f.mod.OnChange = func(context.Context) { purges++ }

	a := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorGreen, IsPublished: true, CreatedAt: now})
	b := f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Mom", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})

	if err := f.mod.SetColor(ctx, a.ID, model.ColorYellow); err != nil {
		t.Fatal(err)
	}
	if err := f.mod.Delete(ctx, admin, b.ID); err != nil {
		t.Fatal(err)
	}
	if purges != 1 {
		t.Fatalf("unpublished delete purged: %d", purges)
	}
	if err := f.mod.Delete(ctx, admin, a.ID); err != nil {
		t.Fatal(err)
	}
	if purges != 2 {
		t.Fatalf("published delete: purges = %d", purges)
	}

	job, err := f.mod.DeleteSelected(ctx, admin, []uint64{a.ID})
	if err != nil {
		t.Fatal(err)
	}
	job.Wait()
	job, err = f.mod.ColorNicknames(ctx, []string{"Mom"}, model.ColorRed)
	if err != nil {
		t.Fatal(err)
	}
	job.Wait()
	if purges != 4 {
		t.Fatalf("bulk jobs: purges = %d", purges)
	}
}
