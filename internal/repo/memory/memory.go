package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/history"
	"github.com/hamed0406/healthwatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	websites map[domain.TargetID]*domain.Website
	apps     map[domain.TargetID]*domain.InternalApp
	alerts   []domain.AlertRecord
	settings *domain.Settings
	nextID   int64

	ledger *history.Ledger
}

func New() *Store {
	return &Store{
		websites: make(map[domain.TargetID]*domain.Website),
		apps:     make(map[domain.TargetID]*domain.InternalApp),
		ledger:   history.NewLedger(repo.HistoryCapacity),
	}
}

func (m *Store) Close() error { return nil }

// ---- TargetStore ----

func (m *Store) SaveWebsite(ctx context.Context, w *domain.Website) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if w.ID == "" {
		w.ID = domain.TargetID(uuid.NewString())
	}
	if prev, ok := m.websites[w.ID]; ok {
		w.CreatedAt = prev.CreatedAt
	} else if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	cp := *w
	m.websites[w.ID] = &cp
	return nil
}

func (m *Store) SaveApp(ctx context.Context, a *domain.InternalApp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, ok := m.websites[a.WebsiteID]
	if !ok {
		return repo.ErrNotFound
	}
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = domain.TargetID(uuid.NewString())
	}
	if prev, ok := m.apps[a.ID]; ok {
		a.CreatedAt = prev.CreatedAt
	} else if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	pc := *parent
	a.Parent = &pc
	cp := *a
	cp.Parent = nil
	m.apps[a.ID] = &cp
	return nil
}

func (m *Store) Website(ctx context.Context, id domain.TargetID) (*domain.Website, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.websites[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *Store) App(ctx context.Context, id domain.TargetID) (*domain.InternalApp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return m.withParent(a), nil
}

func (m *Store) Websites(ctx context.Context) ([]*domain.Website, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Website, 0, len(m.websites))
	for _, w := range m.websites {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) Apps(ctx context.Context) ([]*domain.InternalApp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.InternalApp, 0, len(m.apps))
	for _, a := range m.apps {
		out = append(out, m.withParent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// withParent must be called with m.mu held.
func (m *Store) withParent(a *domain.InternalApp) *domain.InternalApp {
	cp := *a
	if p, ok := m.websites[a.WebsiteID]; ok {
		pc := *p
		cp.Parent = &pc
	}
	return &cp
}

func (m *Store) DeleteWebsite(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.websites[id]; !ok {
		return repo.ErrNotFound
	}
	for aid, a := range m.apps {
		if a.WebsiteID == id {
			m.ledger.Drop(domain.TargetRef{Kind: domain.KindApp, ID: aid})
			delete(m.apps, aid)
		}
	}
	m.ledger.Drop(domain.TargetRef{Kind: domain.KindWebsite, ID: id})
	kept := m.alerts[:0]
	for _, al := range m.alerts {
		if al.WebsiteID != id {
			kept = append(kept, al)
		}
	}
	m.alerts = kept
	delete(m.websites, id)
	return nil
}

func (m *Store) DeleteApp(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[id]; !ok {
		return repo.ErrNotFound
	}
	m.ledger.Drop(domain.TargetRef{Kind: domain.KindApp, ID: id})
	delete(m.apps, id)
	return nil
}

// ---- HistoryStore ----

// Record appends under the store lock so a result for a target that was
// deleted meanwhile is refused instead of outliving the cascade.
func (m *Store) Record(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists(r.Target) {
		return repo.ErrNotFound
	}
	m.nextID++
	r.ID = m.nextID
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	m.ledger.Append(*r)
	return nil
}

func (m *Store) exists(ref domain.TargetRef) bool {
	switch ref.Kind {
	case domain.KindWebsite:
		_, ok := m.websites[ref.ID]
		return ok
	case domain.KindApp:
		_, ok := m.apps[ref.ID]
		return ok
	}
	return false
}

func (m *Store) Recent(ctx context.Context, ref domain.TargetRef, n int) ([]domain.CheckResult, error) {
	return m.ledger.Recent(ref, n), nil
}

// ---- AlertStore ----

func (m *Store) LatestAlert(ctx context.Context, websiteID domain.TargetID, t domain.AlertType) (*domain.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.AlertRecord
	for i := range m.alerts {
		a := &m.alerts[i]
		if a.WebsiteID != websiteID || a.Type != t {
			continue
		}
		if latest == nil || a.SentAt.After(latest.SentAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *Store) InsertAlert(ctx context.Context, a *domain.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *Store) Alerts(ctx context.Context, q repo.AlertQuery) ([]domain.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AlertRecord, 0)
	for _, a := range m.alerts {
		if q.WebsiteID != "" && a.WebsiteID != q.WebsiteID {
			continue
		}
		if q.Type != "" && a.Type != q.Type {
			continue
		}
		if !q.Since.IsZero() && a.SentAt.Before(q.Since) {
			continue
		}
		if a.Cleared && !q.IncludeCleared {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Store) ClearAlert(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Cleared = true
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *Store) ClearAlerts(ctx context.Context, websiteID domain.TargetID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.alerts {
		a := &m.alerts[i]
		if a.Cleared || (websiteID != "" && a.WebsiteID != websiteID) {
			continue
		}
		a.Cleared = true
		n++
	}
	return n, nil
}

// ---- SettingsStore ----

func (m *Store) Settings(ctx context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		s := domain.DefaultSettings()
		m.settings = &s
	}
	return *m.settings, nil
}

func (m *Store) SaveSettings(ctx context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s = s.Normalize()
	m.settings = &s
	return nil
}
