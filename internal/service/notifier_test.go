package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

func TestNotifierAlertsOncePerCloseTime(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sender := &recordingSender{}
	n := NewNotifier(f.gates, f.selections, sender, testRules())
	n.now = f.clock.Now

	closeAt := f.clock.Now().Add(30 * time.Minute)
	if _, err := f.gates.SetCloseTime(ctx, admin, closeAt); err != nil {
		t.Fatal(err)
	}
	n.Tick(ctx)
	if len(sender.msgs) != 0 {
		t.Fatal("alerted before the close time")
	}
	f.clock.Advance(time.Hour)
	n.Tick(ctx)
	n.Tick(ctx)
	if len(sender.msgs) != 1 || !strings.Contains(sender.msgs[0], "close time") {
		t.Fatalf("msgs = %v", sender.msgs)
	}
	st, _ := f.gates.FormStatus(ctx)
	if !st.IsFormOpen {
		t.Fatal("the notifier must not lock the form")
	}

	// Locking silences the alert; a new close time alerts again.
	if _, err := f.gates.ToggleForm(ctx, admin, false); err != nil {
		t.Fatal(err)
	}
	n.Tick(ctx)
	if _, err := f.gates.SetCloseTime(ctx, admin, f.clock.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(2 * time.Minute)
	n.Tick(ctx)
	if len(sender.msgs) != 2 {
		t.Fatalf("msgs = %v", sender.msgs)
	}
}

func TestNotifierWednesdayReminder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sender := &recordingSender{}
	n := NewNotifier(f.gates, f.selections, sender, testRules())
	n.now = f.clock.Now
	f.selections.put(model.Selection{UserEmail: dad.Email, Nickname: "Dad", Numbers: pick, ColorTag: model.ColorGreen})

	n.Tick(ctx) // Monday
	f.clock.Advance(48 * time.Hour)
	n.Tick(ctx)
	f.clock.Advance(time.Hour)
	n.Tick(ctx)
	if len(sender.msgs) != 1 || !strings.Contains(sender.msgs[0], "1 green") {
		t.Fatalf("msgs = %v", sender.msgs)
	}
	f.clock.Advance(7 * 24 * time.Hour)
	n.Tick(ctx)
	if len(sender.msgs) != 2 {
		t.Fatalf("next week's reminder missing: %v", sender.msgs)
	}
}
