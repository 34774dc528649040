package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// Activity writes the audit trail.  A failed write is logged and never fails
// the operation being audited.
type Activity struct {
	store ActivityStore
	now   func() time.Time
}

func NewActivity(store ActivityStore) *Activity {
	return &Activity{store: store, now: time.Now}
}

// Record appends an entry attributed to actor.
func (a *Activity) Record(ctx context.Context, actor Actor, action, details string) {
	if a == nil || a.store == nil {
		return
	}
	e := &model.ActivityLog{
		UserID:    actor.ID,
		UserEmail: actor.Email,
		UserName:  actor.Name,
		Action:    action,
		Details:   details,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.Append(ctx, e); err != nil {
		log.Printf("activity: append %s for %s failed: %v", action, actor.Email, err)
	}
}

// List returns the newest entries matching f.
func (a *Activity) List(ctx context.Context, f repository.ActivityFilter) ([]model.ActivityLog, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	return a.store.List(ctx, f)
}
