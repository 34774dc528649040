package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// ScoredSelection is a selection with its matches against the current draw.
type ScoredSelection struct {
	model.Selection
	Matches int `json:"matches"`
}

// ResultsView is the public results page.
type ResultsView struct {
	Results           []ScoredSelection     `json:"results"`
	Winning           *model.WinningNumbers `json:"winning_numbers,omitempty"`
	WindowOpen        bool                  `json:"window_open"`
	SettingsPublished bool                  `json:"settings_published"`
	PublishStart      *time.Time            `json:"publish_start_date,omitempty"`
	PublishEnd        *time.Time            `json:"publish_end_date,omitempty"`
}

// PublishManagerView is the admin publish list.
type PublishManagerView struct {
	Rows       []ScoredSelection     `json:"rows"`
	Winning    *model.WinningNumbers `json:"winning_numbers,omitempty"`
	MaxMatches int                   `json:"max_matches"`
	Published  int                   `json:"published"`
}

// Publication decides which selections appear on the public results page.
type Publication struct {
	store    SelectionStore
	winning  WinningStore
	gates    *Gates
	jobs     *Jobs
	activity *Activity
	rules    config.LotteryConfig
	now      func() time.Time
	// OnChange runs after a publish job finishes, e.g. to purge cached
	// results.
	OnChange func(ctx context.Context)
}

func NewPublication(store SelectionStore, winning WinningStore, gates *Gates, jobs *Jobs,
	activity *Activity, rules config.LotteryConfig) *Publication {
	return &Publication{
		store:    store,
		winning:  winning,
		gates:    gates,
		jobs:     jobs,
		activity: activity,
		rules:    rules,
		now:      time.Now,
	}
}

// Results returns every published row ordered by matches, then newest
// first.  is_published is the only per-row gate: an admin soft delete does
// not hide a published row.  search narrows by nickname or user name.  The
// publish window is reported; it only filters rows when EnforceResultsWindow
// is set.
func (p *Publication) Results(ctx context.Context, search string) (*ResultsView, error) {
	settings, err := p.gates.Settings(ctx)
	if err != nil {
		return nil, err
	}
	now := p.now()
	view := &ResultsView{
		Results:    []ScoredSelection{},
		WindowOpen: settings.WindowOpen(now),
	}
	if settings != nil {
		view.SettingsPublished = settings.IsPublished
		view.PublishStart = settings.PublishStart
		view.PublishEnd = settings.PublishEnd
	}
	if p.rules.EnforceResultsWindow && !settings.ResultsVisible(now) {
		return view, nil
	}

	win, err := p.winning.Current(ctx)
	if err != nil {
		return nil, err
	}
	view.Winning = win
	rows, err := p.store.List(ctx, repository.SelectionFilter{
		PublishedOnly:       true,
		IncludeAdminDeleted: true,
		Search:              search,
	})
	if err != nil {
		return nil, err
	}
	view.Results = score(rows, win)
	return view, nil
}

// AdminList returns the filtered non-deleted rows for the publish manager.
func (p *Publication) AdminList(ctx context.Context, f repository.SelectionFilter) (*PublishManagerView, error) {
	f.IncludeAdminDeleted = false
	win, err := p.winning.Current(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := p.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	view := &PublishManagerView{Rows: score(rows, win), Winning: win}
	for _, r := range view.Rows {
		if r.Matches > view.MaxMatches {
			view.MaxMatches = r.Matches
		}
		if r.IsPublished {
			view.Published++
		}
	}
	return view, nil
}

// PublishSelected publishes the given rows, skipping red ones.
func (p *Publication) PublishSelected(ctx context.Context, actor Actor, ids []uint64) (*Job, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no selections given", ErrInvalidInput)
	}
	rows, err := p.store.List(ctx, repository.SelectionFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	return p.startPublish(actor, "publish_selected", rows)
}

// PublishAll publishes every row matching f, skipping red ones.
func (p *Publication) PublishAll(ctx context.Context, actor Actor, f repository.SelectionFilter) (*Job, error) {
	f.IncludeAdminDeleted = false
	rows, err := p.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return p.startPublish(actor, "publish_all", rows)
}

func (p *Publication) startPublish(actor Actor, kind string, rows []model.Selection) (*Job, error) {
	steps := make([]Step, 0, len(rows))
	for i := range rows {
		id := rows[i].ID
		if !rows[i].Publishable() {
			steps = append(steps, func(context.Context) (bool, error) { return true, nil })
			continue
		}
		steps = append(steps, func(ctx context.Context) (bool, error) {
			ok, err := p.store.PublishIfEligible(ctx, id)
			return !ok, err
		})
	}
	return p.jobs.Start(kind, fmt.Sprintf("publishing %d selections", len(rows)), steps, func(pr Progress) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.activity.Record(ctx, actor, model.ActionPublish,
			fmt.Sprintf("%s: %d published, %d skipped (red)", kind, pr.Current-pr.Skipped, pr.Skipped))
		p.changed(ctx)
	})
}

// UnpublishSelected clears is_published on the given rows.
func (p *Publication) UnpublishSelected(ctx context.Context, actor Actor, ids []uint64) (*Job, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no selections given", ErrInvalidInput)
	}
	rows, err := p.store.List(ctx, repository.SelectionFilter{IDs: ids, IncludeAdminDeleted: true})
	if err != nil {
		return nil, err
	}
	return p.startUnpublish(actor, "unpublish_selected", rows)
}

// UnpublishAll clears every published row, including admin-deleted ones.
func (p *Publication) UnpublishAll(ctx context.Context, actor Actor) (*Job, error) {
	rows, err := p.store.List(ctx, repository.SelectionFilter{PublishedOnly: true, IncludeAdminDeleted: true})
	if err != nil {
		return nil, err
	}
	return p.startUnpublish(actor, "unpublish_all", rows)
}

func (p *Publication) startUnpublish(actor Actor, kind string, rows []model.Selection) (*Job, error) {
	steps := make([]Step, 0, len(rows))
	for i := range rows {
		id := rows[i].ID
		steps = append(steps, func(ctx context.Context) (bool, error) {
			return false, p.store.SetPublished(ctx, id, false)
		})
	}
	return p.jobs.Start(kind, fmt.Sprintf("unpublishing %d selections", len(rows)), steps, func(pr Progress) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.activity.Record(ctx, actor, model.ActionPublish, fmt.Sprintf("%s: %d unpublished", kind, pr.Current))
		p.changed(ctx)
	})
}

func (p *Publication) changed(ctx context.Context) {
	if p.OnChange != nil {
		p.OnChange(ctx)
	}
}

// score attaches matches and sorts by matches desc, then newest first.
func score(rows []model.Selection, win *model.WinningNumbers) []ScoredSelection {
	out := make([]ScoredSelection, 0, len(rows))
	for _, r := range rows {
		m := 0
		if win != nil {
			m = model.Matches(r.Numbers, win.Numbers)
		}
		out = append(out, ScoredSelection{Selection: r, Matches: m})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Matches != out[j].Matches {
			return out[i].Matches > out[j].Matches
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
