package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/repo"
)

// Store keeps endpoints in a map. Update holds a per-domain lock for the whole
// read-modify-write so different domains never wait on each other.
type Store struct {
	mu        sync.RWMutex
	endpoints map[string]domain.Endpoint

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		endpoints: make(map[string]domain.Endpoint),
		locks:     make(map[string]*sync.Mutex),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ repo.EndpointStore = (*Store)(nil)

func (m *Store) lockFor(name string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l := m.locks[name]
	if l == nil {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

func (m *Store) Get(ctx context.Context, name string) (*domain.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endpoints[name]
	if !ok {
		return nil, nil
	}
	return clone(e), nil
}

func (m *Store) UpsertIfAbsent(ctx context.Context, name, subscriberID string) (*domain.Endpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.endpoints[name]; ok {
		return clone(e), false, nil
	}
	e := domain.NewEndpoint(name, subscriberID, m.now())
	m.endpoints[name] = e
	return clone(e), true, nil
}

func (m *Store) Put(ctx context.Context, ep *domain.Endpoint) error {
	l := m.lockFor(ep.Domain)
	l.Lock()
	defer l.Unlock()
	m.put(*ep, false)
	return nil
}

// put stores e. With mustExist it refuses to resurrect a record deleted
// while an Update was running.
func (m *Store) put(e domain.Endpoint, mustExist bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[e.Domain]; mustExist && !ok {
		return false
	}
	if e.CreatedAt.IsZero() {
		if cur, ok := m.endpoints[e.Domain]; ok {
			e.CreatedAt = cur.CreatedAt
		} else {
			e.CreatedAt = m.now()
		}
	}
	m.endpoints[e.Domain] = *clone(e)
	return true
}

func (m *Store) Update(ctx context.Context, name string, fn repo.UpdateFunc) (*domain.Endpoint, error) {
	l := m.lockFor(name)
	l.Lock()
	defer l.Unlock()

	cur, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, repo.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next, err := fn(*cur)
	if err != nil {
		return nil, err
	}
	next.Domain = name
	if !m.put(next, true) {
		return nil, repo.ErrNotFound
	}
	return clone(next), nil
}

func (m *Store) List(ctx context.Context) ([]domain.Endpoint, error) {
	return m.filter(func(domain.Endpoint) bool { return true }), nil
}

func (m *Store) ListBySubscriber(ctx context.Context, subscriberID string) ([]domain.Endpoint, error) {
	return m.filter(func(e domain.Endpoint) bool { return e.SubscriberID == subscriberID }), nil
}

func (m *Store) filter(keep func(domain.Endpoint) bool) []domain.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Endpoint, 0, len(m.endpoints))
	for _, e := range m.endpoints {
		if keep(e) {
			out = append(out, *clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

func (m *Store) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[name]; !ok {
		return repo.ErrNotFound
	}
	delete(m.endpoints, name)
	return nil
}

func (m *Store) Close() error { return nil }

// clone copies the record including the DowntimeStart pointee so callers
// cannot mutate stored state.
func clone(e domain.Endpoint) *domain.Endpoint {
	c := e
	if e.DowntimeStart != nil {
		t := *e.DowntimeStart
		c.DowntimeStart = &t
	}
	return &c
}
