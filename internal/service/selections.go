package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/queue"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// Selections controls a user's own selections: submit, edit, resend,
// delete and history.
//
// Every write first passes the form lock gate.  Submit and resend then take
// a per-user submission lock for SubmitLockTTL; while it is held edits and
// deletes are refused too.  The duplicate and green-row checks run inside
// SelectionStore.CreateGuarded so they cannot race with a parallel insert.
type Selections struct {
	store    SelectionStore
	gates    *Gates
	throttle Throttle
	activity *Activity
	events   EventPublisher
	rules    config.LotteryConfig
	now      func() time.Time
	// OnChange runs after an edit or delete touched a published row.
	OnChange func(ctx context.Context)
}

func NewSelections(store SelectionStore, gates *Gates, throttle Throttle, activity *Activity,
	events EventPublisher, rules config.LotteryConfig) *Selections {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Selections{
		store:    store,
		gates:    gates,
		throttle: throttle,
		activity: activity,
		events:   events,
		rules:    rules,
		now:      time.Now,
	}
}

// SubmitInput is a new selection request.  IdempotencyKey is optional; when
// present it must be a UUID.
type SubmitInput struct {
	Nickname       string
	Numbers        []int
	IdempotencyKey string
}

func submitLockKey(a Actor) string { return "submit:" + strconv.FormatUint(a.ID, 10) }
func resendKey(a Actor) string     { return "resend:" + strconv.FormatUint(a.ID, 10) }

// Submit creates a selection.  created is false when an earlier request
// with the same idempotency key already created it.
func (s *Selections) Submit(ctx context.Context, actor Actor, in SubmitInput) (sel *model.Selection, created bool, err error) {
	nick, nums, err := model.ValidatePick(in.Nickname, in.Numbers)
	if err != nil {
		return nil, false, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		parsed, perr := uuid.Parse(key)
		if perr != nil {
			return nil, false, fmt.Errorf("%w: idempotency key must be a uuid", ErrInvalidInput)
		}
		// Braced and urn:uuid: forms collapse to the 36-char canonical form.
		key = parsed.String()
		prev, ferr := s.store.FindByIdempotencyKey(ctx, actor.Email, key)
		if ferr == nil {
			return prev, false, nil
		}
		if !errors.Is(ferr, repository.ErrNotFound) {
			return nil, false, ferr
		}
	}
	if err := s.gates.RequireFormOpen(ctx); err != nil {
		return nil, false, err
	}
	if err := s.acquire(ctx, submitLockKey(actor), s.rules.SubmitLockTTL); err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	sel = s.newSelection(actor, nick, nums, now)
	sel.IdempotencyKey = key
	since := now.Add(-s.rules.DuplicateWindow)
	err = s.store.CreateGuarded(ctx, sel, func(existing []model.Selection) error {
		for i := range existing {
			if existing[i].IsDuplicateOf(nick, nums, since) {
				return ErrDuplicateSubmission
			}
		}
		return nil
	})
	if err != nil {
		s.release(ctx, submitLockKey(actor))
		// A concurrent retry with the same key won the insert.
		if key != "" && errors.Is(err, repository.ErrDuplicateKey) {
			if prev, ferr := s.store.FindByIdempotencyKey(ctx, actor.Email, key); ferr == nil {
				return prev, false, nil
			}
		}
		return nil, false, err
	}

	s.activity.Record(ctx, actor, model.ActionLotterySubmission, describePick(sel))
	s.emit(queue.SelectionSubmitted, actor, sel)
	return sel, true, nil
}

// Edit overwrites the nickname and numbers of the caller's own selection
// while its edit window is open.
func (s *Selections) Edit(ctx context.Context, actor Actor, id uint64, nickname string, numbers []int) (*model.Selection, error) {
	nick, nums, err := model.ValidatePick(nickname, numbers)
	if err != nil {
		return nil, err
	}
	if err := s.gates.RequireFormOpen(ctx); err != nil {
		return nil, err
	}
	if err := s.refuseWhileLocked(ctx, actor); err != nil {
		return nil, err
	}
	sel, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !sel.Editable(s.now()) {
		return nil, ErrEditWindowClosed
	}
	if err := s.store.UpdatePick(ctx, id, nick, nums); err != nil {
		return nil, err
	}
	sel.Nickname = nick
	sel.Numbers = nums
	if sel.IsPublished && s.OnChange != nil {
		s.OnChange(ctx)
	}
	s.emit(queue.SelectionEdited, actor, sel)
	return sel, nil
}

// Resend creates a new green selection under a nickname whose previous
// rows are all non-green or admin-deleted.
func (s *Selections) Resend(ctx context.Context, actor Actor, nickname string, numbers []int) (*model.Selection, error) {
	nick, nums, err := model.ValidatePick(nickname, numbers)
	if err != nil {
		return nil, err
	}
	if err := s.gates.RequireFormOpen(ctx); err != nil {
		return nil, err
	}
	if err := s.acquire(ctx, resendKey(actor), s.rules.ResendDebounce); err != nil {
		return nil, err
	}
	if err := s.acquire(ctx, submitLockKey(actor), s.rules.SubmitLockTTL); err != nil {
		return nil, err
	}

	sel := s.newSelection(actor, nick, nums, s.now().UTC())
	err = s.store.CreateGuarded(ctx, sel, func(existing []model.Selection) error {
		for i := range existing {
			if existing[i].BlocksResend(nick) {
				return ErrGreenExists
			}
		}
		return nil
	})
	if err != nil {
		s.release(ctx, submitLockKey(actor))
		return nil, err
	}

	s.activity.Record(ctx, actor, model.ActionLotterySubmission, "resend "+describePick(sel))
	s.emit(queue.SelectionResent, actor, sel)
	return sel, nil
}

// Delete permanently removes the caller's own selection.  A row that is
// already gone counts as deleted.
func (s *Selections) Delete(ctx context.Context, actor Actor, id uint64) error {
	if err := s.refuseWhileLocked(ctx, actor); err != nil {
		return err
	}
	sel, err := s.owned(ctx, actor, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) && sel == nil {
			return nil
		}
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if sel.IsPublished && s.OnChange != nil {
		s.OnChange(ctx)
	}
	s.emit(queue.SelectionDeleted, actor, sel)
	return nil
}

// HideFromHistory removes the row from the caller's history view only.
func (s *Selections) HideFromHistory(ctx context.Context, actor Actor, id uint64) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	return s.store.HideFromHistory(ctx, id)
}

// History lists the caller's newest selections, including rows an admin
// soft-deleted.
func (s *Selections) History(ctx context.Context, actor Actor) ([]model.Selection, error) {
	return s.store.List(ctx, repository.SelectionFilter{
		UserEmail:           actor.Email,
		HistoryOnly:         true,
		IncludeAdminDeleted: true,
		Limit:               100,
	})
}

// owned loads id and checks it belongs to actor.  A row owned by someone
// else is reported as ErrNotFound together with a non-nil selection.
func (s *Selections) owned(ctx context.Context, actor Actor, id uint64) (*model.Selection, error) {
	sel, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(sel.UserEmail, actor.Email) {
		return sel, repository.ErrNotFound
	}
	return sel, nil
}

func (s *Selections) newSelection(actor Actor, nick string, nums []int, now time.Time) *model.Selection {
	return &model.Selection{
		Numbers:       nums,
		UserEmail:     strings.ToLower(actor.Email),
		UserName:      actor.Name,
		Nickname:      nick,
		DrawDate:      now.In(s.rules.Location).Format("2006-01-02"),
		CreatedAt:     now,
		EditUntil:     now.Add(s.rules.EditWindow),
		ColorTag:      model.ColorGreen,
		ShowInHistory: true,
	}
}

// acquire takes a throttle key.  Redis failures fail open; the store-level
// checks still guard against duplicates.
func (s *Selections) acquire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := s.throttle.Acquire(ctx, key, ttl)
	if err != nil {
		log.Printf("selections: throttle acquire %s: %v", key, err)
		return nil
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

func (s *Selections) release(ctx context.Context, key string) {
	if err := s.throttle.Release(ctx, key); err != nil {
		log.Printf("selections: throttle release %s: %v", key, err)
	}
}

func (s *Selections) refuseWhileLocked(ctx context.Context, actor Actor) error {
	held, err := s.throttle.Held(ctx, submitLockKey(actor))
	if err != nil {
		log.Printf("selections: throttle check: %v", err)
		return nil
	}
	if held {
		return ErrRateLimited
	}
	return nil
}

func (s *Selections) emit(kind string, actor Actor, sel *model.Selection) {
	if s.events == nil || sel == nil {
		return
	}
	ev := queue.SelectionEvent{
		Kind:        kind,
		SelectionID: sel.ID,
		UserID:      actor.ID,
		UserEmail:   sel.UserEmail,
		Nickname:    sel.Nickname,
		Numbers:     append([]int(nil), sel.Numbers...),
		OccurredAt:  s.now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.events.PublishSelection(ctx, ev)
	}()
}

func describePick(sel *model.Selection) string {
	return fmt.Sprintf("nickname=%s numbers=%v", sel.Nickname, sel.Numbers)
}
