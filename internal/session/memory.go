package session

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and as a fallback when no
// database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session // by id
	messages []MessageRecord
	seq      int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) GetBySender(_ context.Context, sender, platform string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Sender == sender && s.Platform == platform {
			return *s, nil
		}
	}
	return Session{}, ErrNotFound
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return *s, nil
	}
	return Session{}, ErrNotFound
}

func (m *MemoryStore) Create(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.Sender == s.Sender && existing.Platform == s.Platform {
			existing.LastActivityAt = time.Now()
			return *existing, nil
		}
	}
	s.ID = uuid.NewString()
	now := time.Now()
	s.CreatedAt = now
	s.LastActivityAt = now
	m.sessions[s.ID] = &s
	return s, nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivityAt = at
		s.FollowupSent = false
	}
	return nil
}

func (m *MemoryStore) SetPaused(_ context.Context, id string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.IsPaused = paused
	return nil
}

func (m *MemoryStore) FillAttribution(_ context.Context, id string, attr Attribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&s.Attribution.SourceType, attr.SourceType)
	fill(&s.Attribution.SourceID, attr.SourceID)
	fill(&s.Attribution.SourceURL, attr.SourceURL)
	fill(&s.Attribution.Headline, attr.Headline)
	fill(&s.Attribution.Body, attr.Body)
	fill(&s.Attribution.ClickID, attr.ClickID)
	fill(&s.Attribution.ButtonText, attr.ButtonText)
	fill(&s.Attribution.ButtonPayload, attr.ButtonPayload)
	return nil
}

func (m *MemoryStore) SetFollowupSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.FollowupSent = true
	}
	return nil
}

func (m *MemoryStore) ListInactive(_ context.Context, cutoff time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.LastActivityAt.Before(cutoff) && !s.FollowupSent && !s.IsPaused {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Before(out[j].LastActivityAt) })
	return out, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, rec MessageRecord) (MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ProviderMessageID != "" {
		for _, existing := range m.messages {
			if existing.ProviderMessageID == rec.ProviderMessageID {
				return MessageRecord{}, ErrDuplicateMessage
			}
		}
	}
	m.seq++
	rec.ID = "msg-" + strconv.Itoa(m.seq)
	rec.CreatedAt = time.Now()
	m.messages = append(m.messages, rec)
	return rec, nil
}

func (m *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MessageRecord
	for _, rec := range m.messages {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) HasProviderMessage(_ context.Context, providerMessageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.messages {
		if rec.ProviderMessageID == providerMessageID {
			return true, nil
		}
	}
	return false, nil
}
