package lead

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu        sync.Mutex
	customers map[string]*Customer
	leads     map[string]*QualifiedLead
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*Customer),
		leads:     make(map[string]*QualifiedLead),
	}
}

func matchesIdentity(phone, name, source string, id Identity) bool {
	if id.Phone != "" {
		return phone == id.Phone
	}
	return id.Name != "" && name == id.Name && source == SourceWeb
}

func (m *MemoryStore) FindCustomer(_ context.Context, id Identity) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if matchesIdentity(c.Phone, c.Name, c.Source, id) {
			return *c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (m *MemoryStore) CreateCustomer(_ context.Context, c Customer) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.customers[c.ID] = &c
	return c, nil
}

func (m *MemoryStore) UpdateCustomer(_ context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	m.customers[c.ID] = &c
	return nil
}

func (m *MemoryStore) FindLead(_ context.Context, id Identity) (QualifiedLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if matchesIdentity(l.Phone, l.Name, l.Source, id) {
			return *l, nil
		}
	}
	return QualifiedLead{}, ErrNotFound
}

func (m *MemoryStore) CreateLead(_ context.Context, l QualifiedLead) (QualifiedLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.NewString()
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	m.leads[l.ID] = &l
	return l, nil
}

func (m *MemoryStore) UpdateLead(_ context.Context, l QualifiedLead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.leads[l.ID]
	if !ok {
		return ErrNotFound
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = time.Now()
	m.leads[l.ID] = &l
	return nil
}

func (m *MemoryStore) ListLeads(_ context.Context, f Filter) ([]QualifiedLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []QualifiedLead
	for _, l := range m.leads {
		if f.Source != "" && l.Source != f.Source {
			continue
		}
		if l.Rating < f.MinRating {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryStore) MarkInjected(_ context.Context, leadID, crmLeadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	l.CRMInjected = true
	l.CRMLeadID = crmLeadID
	l.UpdatedAt = time.Now()
	return nil
}
