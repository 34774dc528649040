package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/queue"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// memSelections is an in-memory SelectionStore.
type memSelections struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.Selection
}

func newMemSelections() *memSelections {
	return &memSelections{rows: map[uint64]*model.Selection{}}
}

// CreateGuarded hands check every row whose nickname matches ignoring case,
// the widest set a MySQL collation could return, so the callers must
// compare nicknames themselves.
func (m *memSelections) CreateGuarded(_ context.Context, sel *model.Selection, check func([]model.Selection) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var existing []model.Selection
	for _, r := range m.rows {
		if r.UserEmail == sel.UserEmail && strings.EqualFold(r.Nickname, sel.Nickname) {
			existing = append(existing, *r)
		}
	}
	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}
	if sel.IdempotencyKey != "" {
		for _, r := range m.rows {
			if r.UserEmail == sel.UserEmail && r.IdempotencyKey == sel.IdempotencyKey {
				return repository.ErrDuplicateKey
			}
		}
	}
	m.nextID++
	sel.ID = m.nextID
	cp := *sel
	cp.Numbers = append([]int(nil), sel.Numbers...)
	m.rows[cp.ID] = &cp
	return nil
}

// put stores a row as-is, for test setup.
func (m *memSelections) put(sel model.Selection) *model.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sel.ID = m.nextID
	m.rows[sel.ID] = &sel
	return &sel
}

func (m *memSelections) get(id uint64) model.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memSelections) GetByID(_ context.Context, id uint64) (*model.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memSelections) FindByIdempotencyKey(_ context.Context, email, key string) (*model.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if strings.EqualFold(r.UserEmail, email) && r.IdempotencyKey == key {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memSelections) List(_ context.Context, f repository.SelectionFilter) ([]model.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Selection
	for _, r := range m.rows {
		if f.Match(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memSelections) update(id uint64, fn func(*model.Selection)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(r)
	return nil
}

func (m *memSelections) UpdatePick(_ context.Context, id uint64, nickname string, numbers []int) error {
	return m.update(id, func(s *model.Selection) { s.Nickname = nickname; s.Numbers = numbers })
}

func (m *memSelections) SetColor(_ context.Context, id uint64, c model.ColorTag) error {
	return m.update(id, func(s *model.Selection) { s.ColorTag = c })
}

func (m *memSelections) SetPublished(_ context.Context, id uint64, p bool) error {
	return m.update(id, func(s *model.Selection) { s.IsPublished = p })
}

func (m *memSelections) PublishIfEligible(_ context.Context, id uint64) (bool, error) {
	ok := false
	err := m.update(id, func(s *model.Selection) {
		if s.Publishable() {
			s.IsPublished = true
			ok = true
		}
	})
	return ok, err
}

func (m *memSelections) SetPaid(_ context.Context, id uint64, paid bool) error {
	return m.update(id, func(s *model.Selection) { s.HasPaid = paid })
}

func (m *memSelections) SoftDelete(_ context.Context, id uint64, at time.Time, admin string) error {
	return m.update(id, func(s *model.Selection) {
		s.DeletedByAdmin = true
		s.DeletedByAdminAt = &at
		s.DeletedByAdminName = admin
	})
}

func (m *memSelections) HideFromHistory(_ context.Context, id uint64) error {
	return m.update(id, func(s *model.Selection) { s.ShowInHistory = false })
}

func (m *memSelections) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memSelections) CountByEmail(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, r := range m.rows {
		if !r.DeletedByAdmin {
			out[strings.ToLower(r.UserEmail)]++
		}
	}
	return out, nil
}

func (m *memSelections) CountActiveGreen(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.ColorTag == model.ColorGreen && !r.DeletedByAdmin {
			n++
		}
	}
	return n, nil
}

type memSettings struct {
	mu sync.Mutex
	s  *model.PublishSettings
}

func (m *memSettings) Latest(context.Context) (*model.PublishSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

func (m *memSettings) Save(_ context.Context, s *model.PublishSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = 1
	}
	cp := *s
	m.s = &cp
	return nil
}

type memWinning struct {
	mu   sync.Mutex
	rows []model.WinningNumbers
}

func (m *memWinning) Create(_ context.Context, w *model.WinningNumbers) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = uint64(len(m.rows) + 1)
	m.rows = append(m.rows, *w)
	return nil
}

func (m *memWinning) ListRecent(_ context.Context, limit int) ([]model.WinningNumbers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WinningNumbers
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.rows[i])
	}
	return out, nil
}

func (m *memWinning) Current(context.Context) (*model.WinningNumbers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return nil, nil
	}
	w := m.rows[len(m.rows)-1]
	return &w, nil
}

func (m *memWinning) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.rows {
		if w.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type memPayments struct {
	mu   sync.Mutex
	rows map[string]model.PaymentRecord
}

func newMemPayments() *memPayments { return &memPayments{rows: map[string]model.PaymentRecord{}} }

func (m *memPayments) GetByEmail(_ context.Context, email string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memPayments) Upsert(_ context.Context, p *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.UserEmail] = *p
	return nil
}

func (m *memPayments) List(context.Context) ([]model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PaymentRecord
	for _, p := range m.rows {
		out = append(out, p)
	}
	return out, nil
}

type memActivity struct {
	mu      sync.Mutex
	entries []model.ActivityLog
}

func (m *memActivity) Append(_ context.Context, e *model.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uint64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memActivity) List(_ context.Context, f repository.ActivityFilter) ([]model.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActivityLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memActivity) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type memUsers struct {
	mu   sync.Mutex
	rows map[uint64]*model.User
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{rows: map[uint64]*model.User{}}
	for i := range users {
		u := users[i]
		m.rows[u.ID] = &u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.rows {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) update(id uint64, fn func(*model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uint64, full, nick, phone string) error {
	return m.update(id, func(u *model.User) { u.FullName, u.Nickname, u.Phone = full, nick, phone })
}

func (m *memUsers) UpdateRole(_ context.Context, id uint64, role string) error {
	return m.update(id, func(u *model.User) { u.Role = role })
}

func (m *memUsers) UpdateGroup(_ context.Context, id uint64, g string) error {
	return m.update(id, func(u *model.User) { u.Group = g })
}

func (m *memUsers) UpdateDisplayName(_ context.Context, id uint64, n string) error {
	return m.update(id, func(u *model.User) { u.DisplayName = n })
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, h string) error {
	return m.update(id, func(u *model.User) { u.PasswordHash = h })
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memTokens struct {
	mu      sync.Mutex
	revoked []uint64
}

func (m *memTokens) RevokeAllForUser(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = append(m.revoked, id)
	return nil
}

type chanPublisher struct{ ch chan queue.SelectionEvent }

func (p *chanPublisher) PublishSelection(_ context.Context, ev queue.SelectionEvent) error {
	p.ch <- ev
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Progress
}

func (r *recordingSink) Broadcast(_ string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := v.(Progress); ok {
		r.events = append(r.events, p)
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSender) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return nil
}

// clock is a settable time source shared by the services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testRules() config.LotteryConfig {
	return config.LotteryConfig{
		EditWindow:      24 * time.Hour,
		DuplicateWindow: 30 * time.Second,
		SubmitLockTTL:   6 * time.Second,
		ResendDebounce:  2 * time.Second,
		Location:        time.UTC,
		ReminderWeekday: time.Wednesday,
	}
}

// fixture wires every service against in-memory stores and one clock.
type fixture struct {
	clock      *clock
	selections *memSelections
	settings   *memSettings
	winning    *memWinning
	payments   *memPayments
	activity   *memActivity
	users      *memUsers
	tokens     *memTokens
	throttle   *MemoryThrottle
	sink       *recordingSink

	gates  *Gates
	sel    *Selections
	pub    *Publication
	mod    *Moderation
	ledger *Ledger
	draws  *Draws
	acct   *Accounts
	jobs   *Jobs
}

var (
	dad   = Actor{ID: 1, Email: "dad@example.com", Name: "Dad", Role: model.RoleUser}
	mom   = Actor{ID: 2, Email: "mom@example.com", Name: "Mom", Role: model.RoleUser}
	admin = Actor{ID: 9, Email: "admin@example.com", Name: "Admin", Role: model.RoleAdmin}
)

func newFixture() *fixture {
	// 2024-05-06 is a Monday.
	c := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:      c,
		selections: newMemSelections(),
		settings:   &memSettings{},
		winning:    &memWinning{},
		payments:   newMemPayments(),
		activity:   &memActivity{},
		users: newMemUsers(
			model.User{ID: 1, Email: dad.Email, FullName: "Dad", Group: "group2", Role: model.RoleUser},
			model.User{ID: 2, Email: mom.Email, FullName: "Mom", Group: "group1", Role: model.RoleUser},
			model.User{ID: 9, Email: admin.Email, FullName: "Admin", Group: model.GroupNone, Role: model.RoleAdmin},
		),
		tokens:   &memTokens{},
		throttle: NewMemoryThrottle(),
		sink:     &recordingSink{},
	}
	f.throttle.now = c.Now
	rules := testRules()
	act := NewActivity(f.activity)
	act.now = c.Now
	f.jobs = NewJobs(0, f.sink)
	f.gates = NewGates(f.settings, act)
	f.gates.now = c.Now
	f.sel = NewSelections(f.selections, f.gates, f.throttle, act, nil, rules)
	f.sel.now = c.Now
	f.pub = NewPublication(f.selections, f.winning, f.gates, f.jobs, act, rules)
	f.pub.now = c.Now
	f.mod = NewModeration(f.selections, f.users, f.jobs, act, rules)
	f.mod.now = c.Now
	f.ledger = NewLedger(f.payments, f.users, f.selections)
	f.draws = NewDraws(f.winning, act, rules)
	f.draws.now = c.Now
	f.acct = NewAccounts(f.users, f.tokens, f.selections, act, 4)
	return f
}
