package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/queue"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

var pick = []int{22, 1, 19, 3, 10, 7}

func TestSubmitCreatesGreenRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sel, created, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "  Dad ", Numbers: pick})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !created {
		t.Fatal("expected a new row")
	}
	if sel.Nickname != "Dad" {
		t.Errorf("nickname not trimmed: %q", sel.Nickname)
	}
	if !model.SameNumbers(sel.Numbers, pick) || sel.Numbers[0] != 1 || sel.Numbers[5] != 22 {
		t.Errorf("numbers not sorted: %v", sel.Numbers)
	}
	if sel.ColorTag != model.ColorGreen || sel.IsPublished || !sel.ShowInHistory {
		t.Errorf("unexpected initial state: %+v", sel)
	}
	if want := f.clock.Now().Add(24 * time.Hour); !sel.EditUntil.Equal(want) {
		t.Errorf("edit_until = %v, want %v", sel.EditUntil, want)
	}
	if sel.DrawDate != "2024-05-06" {
		t.Errorf("draw_date = %s", sel.DrawDate)
	}
	if got := f.activity.actions(); len(got) != 1 || got[0] != model.ActionLotterySubmission {
		t.Errorf("activity = %v", got)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cases := []struct {
		name    string
		nick    string
		numbers []int
		want    error
	}{
		{"five numbers", "Dad", []int{1, 2, 3, 4, 5}, model.ErrInvalidNumbers},
		{"repeated number", "Dad", []int{1, 1, 2, 3, 4, 5}, model.ErrInvalidNumbers},
		{"out of range", "Dad", []int{0, 2, 3, 4, 5, 6}, model.ErrInvalidNumbers},
		{"above max", "Dad", []int{1, 2, 3, 4, 5, 38}, model.ErrInvalidNumbers},
		{"blank nickname", "   ", pick, model.ErrNicknameRequired},
		{"nickname too long", strings.Repeat("ש", model.MaxNicknameLen+1), pick, model.ErrNicknameTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: tc.nick, Numbers: tc.numbers})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if !IsValidation(err) {
				t.Fatal("expected a validation error")
			}
		})
	}
	if rows, _ := f.selections.List(ctx, repository.SelectionFilter{}); len(rows) != 0 {
		t.Fatalf("invalid submissions were stored: %d", len(rows))
	}
}

func TestSubmitLockAndDuplicateWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := SubmitInput{Nickname: "Dad", Numbers: pick}

	if _, _, err := f.sel.Submit(ctx, dad, in); err != nil {
		t.Fatal(err)
	}
	// Inside the 6s submission lock every submit is refused.
	f.clock.Advance(3 * time.Second)
	if _, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Other", Numbers: []int{2, 4, 6, 8, 10, 12}}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want rate limited, got %v", err)
	}
	// Another user is not affected.
	if _, _, err := f.sel.Submit(ctx, mom, in); err != nil {
		t.Fatalf("mom submit: %v", err)
	}

	// Lock expired, but the same pick within 30s is a duplicate.
	f.clock.Advance(4 * time.Second)
	if _, _, err := f.sel.Submit(ctx, dad, in); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("want duplicate, got %v", err)
	}
	// The failed attempt released the lock, so a different pick goes through.
	if _, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: []int{2, 4, 6, 8, 10, 12}}); err != nil {
		t.Fatalf("different pick: %v", err)
	}

	f.clock.Advance(31 * time.Second)
	if _, _, err := f.sel.Submit(ctx, dad, in); err != nil {
		t.Fatalf("after duplicate window: %v", err)
	}
}

func TestSubmitIdempotencyKey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := SubmitInput{Nickname: "Dad", Numbers: pick, IdempotencyKey: "6f1c7a52-3a07-4a3e-9b9c-0f4d2b7f1e11"}

	first, created, err := f.sel.Submit(ctx, dad, in)
	if err != nil || !created {
		t.Fatalf("first: created=%v err=%v", created, err)
	}
	again, created, err := f.sel.Submit(ctx, dad, in)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("retry created a new row: %d vs %d", again.ID, first.ID)
	}

	in.IdempotencyKey = "not-a-uuid"
	if _, _, err := f.sel.Submit(ctx, dad, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want invalid input, got %v", err)
	}
}

func TestSubmitIdempotencyKeyIsCanonical(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := SubmitInput{Nickname: "Dad", Numbers: pick, IdempotencyKey: "{6F1C7A52-3A07-4A3E-9B9C-0F4D2B7F1E11}"}

	first, _, err := f.sel.Submit(ctx, dad, in)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.selections.get(first.ID).IdempotencyKey; got != "6f1c7a52-3a07-4a3e-9b9c-0f4d2b7f1e11" {
		t.Fatalf("stored key = %q", got)
	}
	in.IdempotencyKey = "urn:uuid:6f1c7a52-3a07-4a3e-9b9c-0f4d2b7f1e11"
	again, created, err := f.sel.Submit(ctx, dad, in)
	if err != nil || created || again.ID != first.ID {
		t.Fatalf("urn retry: created=%v err=%v", created, err)
	}
}

func TestConcurrentSubmitsCreateOneRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	okCount := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: pick}); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if okCount != 1 {
		t.Fatalf("want exactly one accepted submit, got %d", okCount)
	}
}

func TestFormLockRejectsWrites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sel, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: pick})
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Second)

	if _, err := f.gates.ToggleForm(ctx, admin, false); !errors.Is(err, ErrNoSettings) {
		t.Fatalf("toggle without settings: %v", err)
	}
	if _, err := f.gates.SetCloseTime(ctx, admin, f.clock.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.gates.ToggleForm(ctx, admin, false); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.sel.Submit(ctx, mom, SubmitInput{Nickname: "Mom", Numbers: pick}); !errors.Is(err, ErrFormLocked) {
		t.Errorf("submit: %v", err)
	}
	if _, err := f.sel.Edit(ctx, dad, sel.ID, "Dad", []int{2, 4, 6, 8, 10, 12}); !errors.Is(err, ErrFormLocked) {
		t.Errorf("edit: %v", err)
	}
	if _, err := f.sel.Resend(ctx, dad, "Dad", pick); !errors.Is(err, ErrFormLocked) {
		t.Errorf("resend: %v", err)
	}

	st, _ := f.gates.FormStatus(ctx)
	if st.IsFormOpen || st.LockedBy != "Admin" {
		t.Errorf("status = %+v", st)
	}
	if _, err := f.gates.ToggleForm(ctx, admin, true); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.sel.Submit(ctx, mom, SubmitInput{Nickname: "Mom", Numbers: pick}); err != nil {
		t.Errorf("submit after reopening: %v", err)
	}
}

func TestEditRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sel, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: pick})
	if err != nil {
		t.Fatal(err)
	}
	other := []int{5, 6, 7, 8, 9, 10}

	if _, err := f.sel.Edit(ctx, dad, sel.ID, "Dad", other); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("edit under lock: %v", err)
	}
	f.clock.Advance(7 * time.Second)
	if _, err := f.sel.Edit(ctx, mom, sel.ID, "Mom", other); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("edit by non-owner: %v", err)
	}
	got, err := f.sel.Edit(ctx, dad, sel.ID, "Dad2", other)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	stored := f.selections.get(sel.ID)
	if stored.Nickname != "Dad2" || !model.SameNumbers(stored.Numbers, other) || got.Nickname != "Dad2" {
		t.Fatalf("edit not stored: %+v", stored)
	}
	if !stored.EditUntil.Equal(sel.EditUntil) || stored.ColorTag != model.ColorGreen {
		t.Fatal("edit must not touch edit_until or color")
	}

	// The window is inclusive of edit_until.
	f.clock.t = sel.EditUntil
	if _, err := f.sel.Edit(ctx, dad, sel.ID, "Dad", pick); err != nil {
		t.Fatalf("edit at edit_until: %v", err)
	}
	f.clock.Advance(time.Second)
	if _, err := f.sel.Edit(ctx, dad, sel.ID, "Dad", pick); !errors.Is(err, ErrEditWindowClosed) {
		t.Fatalf("edit after window: %v", err)
	}
}

// Dad submits, cannot resend while his row is green, the admin turns it
// red, and the resend then succeeds.
func TestResendLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: pick})
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(7 * time.Second)

	if _, err := f.sel.Resend(ctx, dad, "Dad", pick); !errors.Is(err, ErrGreenExists) {
		t.Fatalf("resend over green: %v", err)
	}
	if err := f.mod.SetColor(ctx, first.ID, model.ColorRed); err != nil {
		t.Fatal(err)
	}
	// Still inside the 2s debounce of the previous attempt.
	if _, err := f.sel.Resend(ctx, dad, "Dad", pick); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("resend inside debounce: %v", err)
	}
	f.clock.Advance(3 * time.Second)
	second, err := f.sel.Resend(ctx, dad, "Dad", pick)
	if err != nil {
		t.Fatalf("resend after red: %v", err)
	}
	if second.ID == first.ID || second.ColorTag != model.ColorGreen {
		t.Fatalf("unexpected resend row %+v", second)
	}
	// The new green row blocks the next resend again.
	f.clock.Advance(10 * time.Second)
	if _, err := f.sel.Resend(ctx, dad, "Dad", pick); !errors.Is(err, ErrGreenExists) {
		t.Fatalf("second resend: %v", err)
	}
}

// A green "Dad" row does not block a resend under "dad".
func TestResendComparesNicknameExactly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: pick}); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(7 * time.Second)
	sel, err := f.sel.Resend(ctx, dad, "dad", pick)
	if err != nil {
		t.Fatalf("resend under another case: %v", err)
	}
	if sel.Nickname != "dad" {
		t.Fatalf("nickname = %q", sel.Nickname)
	}
}

func TestResendIgnoresYellowAndDeletedRows(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()
	f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorYellow, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorGreen, DeletedByAdmin: true, CreatedAt: now})
	f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorGreen, CreatedAt: now})

	if _, err := f.sel.Resend(ctx, dad, "Dad", pick); err != nil {
		t.Fatalf("resend: %v", err)
	}
}

func TestDeleteOwnSelection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sel, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: pick})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.sel.Delete(ctx, dad, sel.ID); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("delete under lock: %v", err)
	}
	f.clock.Advance(7 * time.Second)
	if err := f.sel.Delete(ctx, mom, sel.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("delete by non-owner: %v", err)
	}
	if err := f.sel.Delete(ctx, dad, sel.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.selections.GetByID(ctx, sel.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatal("row still present")
	}
	if err := f.sel.Delete(ctx, dad, sel.ID); err != nil {
		t.Fatalf("second delete should succeed, got %v", err)
	}
}

func TestHistoryShowsAdminDeletedButNotHidden(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()
	kept := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "A", Numbers: pick, ShowInHistory: true, CreatedAt: now})
	deleted := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "B", Numbers: pick, ShowInHistory: true, CreatedAt: now.Add(time.Minute)})
	hidden := f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "C", Numbers: pick, ShowInHistory: true, CreatedAt: now.Add(2 * time.Minute)})
	f.selections.put(model.Selection{UserEmail: mom.Email, Nickname: "M", Numbers: pick, ShowInHistory: true, CreatedAt: now})

	if err := f.mod.Delete(ctx, admin, deleted.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.sel.HideFromHistory(ctx, dad, hidden.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.sel.HideFromHistory(ctx, mom, kept.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("hide by non-owner: %v", err)
	}

	rows, err := f.sel.History(ctx, dad)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != deleted.ID || rows[1].ID != kept.ID {
		t.Fatalf("history = %+v", rows)
	}
	if !rows[0].DeletedByAdmin || rows[0].DeletedByAdminName != "Admin" {
		t.Fatalf("admin delete not visible to owner: %+v", rows[0])
	}
}

func TestSubmitPublishesEvent(t *testing.T) {
	f := newFixture()
	pub := &chanPublisher{ch: make(chan queue.SelectionEvent, 1)}
	f.sel.events = pub

	sel, _, err := f.sel.Submit(context.Background(), dad, SubmitInput{Nickname: "Dad", Numbers: pick})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-pub.ch:
		if ev.Kind != queue.SelectionSubmitted || ev.SelectionID != sel.ID || ev.UserEmail != dad.Email {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestEditAndDeletePurgePublishedResults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	var purges int
	f.sel.OnChange = func(context.Context) { purges++ }

	sel, _, err := f.sel.Submit(ctx, dad, SubmitInput{Nickname: "Dad", Numbers: pick})
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(7 * time.Second)
	if _, err := f.sel.Edit(ctx, dad, sel.ID, "Dad", []int{2, 4, 6, 8, 10, 12}); err != nil {
		t.Fatal(err)
	}
	if purges != 0 {
		t.Fatal("unpublished edit must not purge")
	}

	_ = f.selections.SetPublished(ctx, sel.ID, true)
	if _, err := f.sel.Edit(ctx, dad, sel.ID, "Dad", pick); err != nil {
		t.Fatal(err)
	}
	if err := f.sel.Delete(ctx, dad, sel.ID); err != nil {
		t.Fatal(err)
	}
	if purges != 2 {
		t.Fatalf("purges = %d, want 2", purges)
	}
}
