package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// ReportRow is a selection annotated with its owner's group.
type ReportRow struct {
	model.Selection
	Group       string `json:"group"`
	DisplayName string `json:"display_name"`
}

// NicknameGroup summarizes the rows sharing one nickname.
type NicknameGroup struct {
	Nickname string                 `json:"nickname"`
	Count    int                    `json:"count"`
	Colors   map[model.ColorTag]int `json:"colors"`
	IDs      []uint64               `json:"ids"`
}

// Report is the admin submissions view.
type Report struct {
	Rows        []ReportRow            `json:"rows"`
	Nicknames   []NicknameGroup        `json:"nicknames"`
	Colors      map[model.ColorTag]int `json:"colors"`
	ReminderDue bool                   `json:"reminder_due"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers        int `json:"total_users"`
	Admins            int `json:"admins"`
	ActiveSelections  int `json:"active_selections"`
	ActiveUsers       int `json:"active_users"`
	TotalSubmissions  int `json:"total_submissions"`
	UsersWithoutPicks int `json:"users_without_selections"`
}

// Moderation is the admin overlay on selections: color tags, soft delete,
// the paid flag and the grouped report.
type Moderation struct {
	store    SelectionStore
	users    UserStore
	jobs     *Jobs
	activity *Activity
	rules    config.LotteryConfig
	now      func() time.Time
	// OnChange runs after a moderation write that the public results show
	// (color tags and soft-delete fields of published rows).
	OnChange func(ctx context.Context)
}

func NewModeration(store SelectionStore, users UserStore, jobs *Jobs, activity *Activity,
	rules config.LotteryConfig) *Moderation {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Moderation{store: store, users: users, jobs: jobs, activity: activity, rules: rules, now: time.Now}
}

// Report lists non-deleted rows matching f, ordered by the owner's group and
// then nickname.
func (m *Moderation) Report(ctx context.Context, f repository.SelectionFilter) (*Report, error) {
	f.IncludeAdminDeleted = false
	rows, err := m.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	users, err := m.users.List(ctx)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]model.User, len(users))
	for _, u := range users {
		byEmail[strings.ToLower(u.Email)] = u
	}

	rep := &Report{
		Rows:        make([]ReportRow, 0, len(rows)),
		Colors:      map[model.ColorTag]int{},
		ReminderDue: m.now().In(m.rules.Location).Weekday() == m.rules.ReminderWeekday,
	}
	for _, s := range rows {
		r := ReportRow{Selection: s, Group: model.GroupNone}
		if u, ok := byEmail[strings.ToLower(s.UserEmail)]; ok {
			r.Group = u.Group
			r.DisplayName = u.Name()
		}
		rep.Rows = append(rep.Rows, r)
		rep.Colors[s.ColorTag]++
	}
	sort.SliceStable(rep.Rows, func(i, j int) bool {
		gi, gj := model.GroupRank(rep.Rows[i].Group), model.GroupRank(rep.Rows[j].Group)
		if gi != gj {
			return gi < gj
		}
		return strings.ToLower(rep.Rows[i].Nickname) < strings.ToLower(rep.Rows[j].Nickname)
	})

	idx := map[string]int{}
	for _, r := range rep.Rows {
		i, ok := idx[r.Nickname]
		if !ok {
			i = len(rep.Nicknames)
			idx[r.Nickname] = i
			rep.Nicknames = append(rep.Nicknames, NicknameGroup{Nickname: r.Nickname, Colors: map[model.ColorTag]int{}})
		}
		g := &rep.Nicknames[i]
		g.Count++
		g.Colors[r.ColorTag]++
		g.IDs = append(g.IDs, r.ID)
	}
	return rep, nil
}

// SetColor tags a single row.
func (m *Moderation) SetColor(ctx context.Context, id uint64, color model.ColorTag) error {
	if err := m.store.SetColor(ctx, id, color); err != nil {
		return err
	}
	m.changed(ctx)
	return nil
}

// ColorSelected tags the given rows as a bulk job.
func (m *Moderation) ColorSelected(ctx context.Context, ids []uint64, color model.ColorTag) (*Job, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no selections given", ErrInvalidInput)
	}
	rows, err := m.store.List(ctx, repository.SelectionFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	return m.startColor("color_selected", rows, color)
}

// ColorNicknames tags every non-deleted row of the given nicknames.
func (m *Moderation) ColorNicknames(ctx context.Context, nicknames []string, color model.ColorTag) (*Job, error) {
	nicknames = cleanNicknames(nicknames)
	if len(nicknames) == 0 {
		return nil, fmt.Errorf("%w: no nicknames given", ErrInvalidInput)
	}
	rows, err := m.store.List(ctx, repository.SelectionFilter{Nicknames: nicknames})
	if err != nil {
		return nil, err
	}
	return m.startColor("color_nicknames", rows, color)
}

// TurnAllRed tags every non-red row matching f red.
func (m *Moderation) TurnAllRed(ctx context.Context, f repository.SelectionFilter) (*Job, error) {
	f.IncludeAdminDeleted = false
	f.Color = ""
	rows, err := m.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	targets := rows[:0]
	for _, r := range rows {
		if r.ColorTag != model.ColorRed {
			targets = append(targets, r)
		}
	}
	return m.startColor("turn_all_red", targets, model.ColorRed)
}

func (m *Moderation) startColor(kind string, rows []model.Selection, color model.ColorTag) (*Job, error) {
	steps := make([]Step, 0, len(rows))
	for i := range rows {
		id, current := rows[i].ID, rows[i].ColorTag
		steps = append(steps, func(ctx context.Context) (bool, error) {
			if current == color {
				return true, nil
			}
			return false, m.store.SetColor(ctx, id, color)
		})
	}
	return m.jobs.Start(kind, fmt.Sprintf("coloring %d selections %s", len(rows), color), steps, m.changedAfterJob)
}

// Delete soft-deletes one row on behalf of an admin.
func (m *Moderation) Delete(ctx context.Context, actor Actor, id uint64) error {
	sel, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.SoftDelete(ctx, id, m.now().UTC(), actor.Name); err != nil {
		return err
	}
	m.activity.Record(ctx, actor, model.ActionSubmissionDeleted, deletedDetails(sel))
	if sel.IsPublished {
		m.changed(ctx)
	}
	return nil
}

// DeleteSelected soft-deletes the given rows as a bulk job.
func (m *Moderation) DeleteSelected(ctx context.Context, actor Actor, ids []uint64) (*Job, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no selections given", ErrInvalidInput)
	}
	rows, err := m.store.List(ctx, repository.SelectionFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	return m.startDelete(actor, "delete_selected", rows)
}

// DeleteNicknames soft-deletes every row of the given nicknames.
func (m *Moderation) DeleteNicknames(ctx context.Context, actor Actor, nicknames []string) (*Job, error) {
	nicknames = cleanNicknames(nicknames)
	if len(nicknames) == 0 {
		return nil, fmt.Errorf("%w: no nicknames given", ErrInvalidInput)
	}
	rows, err := m.store.List(ctx, repository.SelectionFilter{Nicknames: nicknames})
	if err != nil {
		return nil, err
	}
	return m.startDelete(actor, "delete_nicknames", rows)
}

func (m *Moderation) startDelete(actor Actor, kind string, rows []model.Selection) (*Job, error) {
	steps := make([]Step, 0, len(rows))
	for i := range rows {
		sel := rows[i]
		steps = append(steps, func(ctx context.Context) (bool, error) {
			if err := m.store.SoftDelete(ctx, sel.ID, m.now().UTC(), actor.Name); err != nil {
				return false, err
			}
			m.activity.Record(ctx, actor, model.ActionSubmissionDeletedBulk, deletedDetails(&sel))
			return false, nil
		})
	}
	return m.jobs.Start(kind, fmt.Sprintf("deleting %d selections", len(rows)), steps, m.changedAfterJob)
}

// SetPaid toggles the legacy per-row paid flag.
func (m *Moderation) SetPaid(ctx context.Context, id uint64, paid bool) error {
	return m.store.SetPaid(ctx, id, paid)
}

// Stats counts users and active selections.
func (m *Moderation) Stats(ctx context.Context) (*Stats, error) {
	users, err := m.users.List(ctx)
	if err != nil {
		return nil, err
	}
	green, err := m.store.CountActiveGreen(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := m.store.CountByEmail(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalUsers: len(users), ActiveSelections: green}
	for _, u := range users {
		if u.IsAdmin() {
			st.Admins++
		}
		if u.LastLogin != nil {
			st.ActiveUsers++
		}
		if counts[strings.ToLower(u.Email)] == 0 {
			st.UsersWithoutPicks++
		}
	}
	for _, n := range counts {
		st.TotalSubmissions += n
	}
	return st, nil
}

func (m *Moderation) changed(ctx context.Context) {
	if m.OnChange != nil {
		m.OnChange(ctx)
	}
}

func (m *Moderation) changedAfterJob(Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.changed(ctx)
}

func deletedDetails(sel *model.Selection) string {
	return fmt.Sprintf("selection=%d owner=%s nickname=%s numbers=%v", sel.ID, sel.UserEmail, sel.Nickname, sel.Numbers)
}

func cleanNicknames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
