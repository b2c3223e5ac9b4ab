// Package blocklist tracks numbers that must never receive outbound messages.
package blocklist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one blocked number.
type Entry struct {
	Phone     string    `json:"phone"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists the blocked-number list.
type Store interface {
	Add(ctx context.Context, phone, reason string) error
	Remove(ctx context.Context, phone string) error
	IsBlocked(ctx context.Context, phone string) (bool, error)
	List(ctx context.Context) ([]Entry, error)
}

// canonical strips the channel prefix so "whatsapp:+52..." and "+52..." block
// the same person.
func canonical(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
}

// PgStore is the PostgreSQL-backed Store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore over the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (st *PgStore) Add(ctx context.Context, phone, reason string) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO blocked_numbers (phone, reason) VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET reason = EXCLUDED.reason`,
		canonical(phone), reason)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	return nil
}

func (st *PgStore) Remove(ctx context.Context, phone string) error {
	_, err := st.pool.Exec(ctx,
		`DELETE FROM blocked_numbers WHERE phone = $1`, canonical(phone))
	if err != nil {
		return fmt.Errorf("unblock number: %w", err)
	}
	return nil
}

func (st *PgStore) IsBlocked(ctx context.Context, phone string) (bool, error) {
	var blocked bool
	err := st.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocked_numbers WHERE phone = $1)`,
		canonical(phone)).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("blocklist lookup: %w", err)
	}
	return blocked, nil
}

func (st *PgStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT phone, reason, created_at FROM blocked_numbers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blocked numbers: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Phone, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blocked number: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Add(_ context.Context, phone, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := canonical(phone)
	m.entries[p] = Entry{Phone: p, Reason: reason, CreatedAt: time.Now()}
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, canonical(phone))
	return nil
}

func (m *MemoryStore) IsBlocked(_ context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[canonical(phone)]
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}
