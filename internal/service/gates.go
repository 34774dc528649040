package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// FormStatus is what users see about the submission form.
type FormStatus struct {
	IsFormOpen       bool       `json:"is_form_open"`
	FormCloseDate    *time.Time `json:"form_close_date,omitempty"`
	CloseTimeReached bool       `json:"close_time_reached"`
	LockedBy         string     `json:"locked_by,omitempty"`
}

// PublishStatus reports the results gate.
type PublishStatus struct {
	Settings   *model.PublishSettings `json:"settings"`
	WindowOpen bool                   `json:"window_open"`
	Visible    bool                   `json:"visible"`
}

// Gates manages the form lock and the publish window, both stored in the
// newest publish_settings row.
type Gates struct {
	store    SettingsStore
	activity *Activity
	now      func() time.Time
}

func NewGates(store SettingsStore, activity *Activity) *Gates {
	return &Gates{store: store, activity: activity, now: time.Now}
}

// Settings returns the newest settings row or nil.
func (g *Gates) Settings(ctx context.Context) (*model.PublishSettings, error) {
	return g.store.Latest(ctx)
}

func (g *Gates) FormStatus(ctx context.Context) (FormStatus, error) {
	s, err := g.store.Latest(ctx)
	if err != nil {
		return FormStatus{}, err
	}
	st := FormStatus{IsFormOpen: model.FormOpen(s)}
	if s != nil {
		st.FormCloseDate = s.FormCloseDate
		st.CloseTimeReached = s.CloseTimeReached(g.now())
		if !s.IsFormOpen {
			st.LockedBy = s.FormLockedByAdmin
		}
	}
	return st, nil
}

// RequireFormOpen returns ErrFormLocked while an admin has locked the form.
func (g *Gates) RequireFormOpen(ctx context.Context) error {
	s, err := g.store.Latest(ctx)
	if err != nil {
		return err
	}
	if !model.FormOpen(s) {
		return ErrFormLocked
	}
	return nil
}

// SetCloseTime schedules the advisory close time and (re)opens the form.
func (g *Gates) SetCloseTime(ctx context.Context, actor Actor, closeAt time.Time) (*model.PublishSettings, error) {
	s, err := g.latestOrNew(ctx)
	if err != nil {
		return nil, err
	}
	t := closeAt.UTC()
	s.FormCloseDate = &t
	s.IsFormOpen = true
	if err := g.store.Save(ctx, s); err != nil {
		return nil, err
	}
	g.activity.Record(ctx, actor, model.ActionPublish, "form close time set to "+t.Format(time.RFC3339))
	return s, nil
}

// ToggleForm opens or locks the form.  It needs an existing settings row.
func (g *Gates) ToggleForm(ctx context.Context, actor Actor, open bool) (*model.PublishSettings, error) {
	s, err := g.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSettings
	}
	s.IsFormOpen = open
	if open {
		s.FormLockedByAdminID = 0
		s.FormLockedByAdmin = ""
	} else {
		s.FormLockedByAdminID = actor.ID
		s.FormLockedByAdmin = actor.Name
	}
	if err := g.store.Save(ctx, s); err != nil {
		return nil, err
	}
	state := "locked"
	if open {
		state = "opened"
	}
	g.activity.Record(ctx, actor, model.ActionPublish, "form "+state)
	return s, nil
}

func (g *Gates) PublishStatus(ctx context.Context) (PublishStatus, error) {
	s, err := g.store.Latest(ctx)
	if err != nil {
		return PublishStatus{}, err
	}
	now := g.now()
	return PublishStatus{Settings: s, WindowOpen: s.WindowOpen(now), Visible: s.ResultsVisible(now)}, nil
}

// SetPublishWindow stores a new window and clears the manual override.
func (g *Gates) SetPublishWindow(ctx context.Context, actor Actor, start, end time.Time) (*model.PublishSettings, error) {
	if !end.After(start) {
		return nil, ErrInvalidWindow
	}
	s, err := g.latestOrNew(ctx)
	if err != nil {
		return nil, err
	}
	st, en := start.UTC(), end.UTC()
	s.PublishStart = &st
	s.PublishEnd = &en
	s.IsPublished = false
	if err := g.store.Save(ctx, s); err != nil {
		return nil, err
	}
	g.activity.Record(ctx, actor, model.ActionPublish,
		fmt.Sprintf("publish window %s - %s", st.Format(time.RFC3339), en.Format(time.RFC3339)))
	return s, nil
}

// TogglePublish flips the manual results override.  A window must be set.
func (g *Gates) TogglePublish(ctx context.Context, actor Actor, published bool) (*model.PublishSettings, error) {
	s, err := g.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if !s.HasWindow() {
		return nil, ErrNoPublishWindow
	}
	s.IsPublished = published
	if published {
		s.PublishedByAdminID = actor.ID
		s.PublishedByAdminName = actor.Name
	}
	if err := g.store.Save(ctx, s); err != nil {
		return nil, err
	}
	g.activity.Record(ctx, actor, model.ActionPublish, fmt.Sprintf("results published=%t", published))
	return s, nil
}

func (g *Gates) latestOrNew(ctx context.Context) (*model.PublishSettings, error) {
	s, err := g.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = &model.PublishSettings{IsFormOpen: true}
	}
	return s, nil
}
