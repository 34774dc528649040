package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// Draws manages the published winning numbers.
type Draws struct {
	store    WinningStore
	activity *Activity
	rules    config.LotteryConfig
	now      func() time.Time
}

func NewDraws(store WinningStore, activity *Activity, rules config.LotteryConfig) *Draws {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Draws{store: store, activity: activity, rules: rules, now: time.Now}
}

// Create publishes a draw.  drawDate is YYYY-MM-DD and defaults to today in
// the lottery time zone.
func (d *Draws) Create(ctx context.Context, actor Actor, numbers []int, drawDate, week string) (*model.WinningNumbers, error) {
	nums, err := model.NormalizeNumbers(numbers)
	if err != nil {
		return nil, err
	}
	drawDate = strings.TrimSpace(drawDate)
	if drawDate == "" {
		drawDate = d.now().In(d.rules.Location).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", drawDate); err != nil {
		return nil, fmt.Errorf("%w: draw_date must be YYYY-MM-DD", ErrInvalidInput)
	}
	w := &model.WinningNumbers{
		Numbers:              nums,
		DrawDate:             drawDate,
		WeekDescription:      strings.TrimSpace(week),
		PublishedByAdminID:   actor.ID,
		PublishedByAdminName: actor.Name,
		IsActive:             true,
		CreatedAt:            d.now().UTC(),
	}
	if err := d.store.Create(ctx, w); err != nil {
		return nil, err
	}
	d.activity.Record(ctx, actor, model.ActionWinningNumbers, fmt.Sprintf("draw %s numbers=%v", drawDate, nums))
	return w, nil
}

func (d *Draws) Recent(ctx context.Context) ([]model.WinningNumbers, error) {
	return d.store.ListRecent(ctx, 10)
}

// Current returns the newest draw or nil.
func (d *Draws) Current(ctx context.Context) (*model.WinningNumbers, error) {
	return d.store.Current(ctx)
}

func (d *Draws) Delete(ctx context.Context, actor Actor, id uint64) error {
	if err := d.store.Delete(ctx, id); err != nil {
		return err
	}
	d.activity.Record(ctx, actor, model.ActionWinningNumbers, fmt.Sprintf("draw %d deleted", id))
	return nil
}
