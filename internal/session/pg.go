package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ninalabs/ninabot/internal/db"
)

// PgStore is the PostgreSQL-backed Store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore over the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const sessionColumns = `id, sender, platform, display_name, external_thread_ref,
	is_paused, followup_sent,
	referral_source_type, referral_source_id, referral_source_url,
	referral_headline, referral_body, ctwa_clid, button_text, button_payload,
	created_at, last_activity_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.Sender, &s.Platform, &s.DisplayName, &s.ExternalThreadRef,
		&s.IsPaused, &s.FollowupSent,
		&s.Attribution.SourceType, &s.Attribution.SourceID, &s.Attribution.SourceURL,
		&s.Attribution.Headline, &s.Attribution.Body, &s.Attribution.ClickID,
		&s.Attribution.ButtonText, &s.Attribution.ButtonPayload,
		&s.CreatedAt, &s.LastActivityAt,
	)
	return s, err
}

func (st *PgStore) GetBySender(ctx context.Context, sender, platform string) (Session, error) {
	row := st.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE sender = $1 AND platform = $2`,
		sender, platform)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session by sender: %w", err)
	}
	return s, nil
}

func (st *PgStore) GetByID(ctx context.Context, id string) (Session, error) {
	row := st.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session by id: %w", err)
	}
	return s, nil
}

func (st *PgStore) Create(ctx context.Context, s Session) (Session, error) {
	row := st.pool.QueryRow(ctx,
		`INSERT INTO sessions (
			sender, platform, display_name, external_thread_ref,
			referral_source_type, referral_source_id, referral_source_url,
			referral_headline, referral_body, ctwa_clid, button_text, button_payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (sender, platform) DO UPDATE SET last_activity_at = now()
		RETURNING `+sessionColumns,
		s.Sender, s.Platform, s.DisplayName, s.ExternalThreadRef,
		s.Attribution.SourceType, s.Attribution.SourceID, s.Attribution.SourceURL,
		s.Attribution.Headline, s.Attribution.Body, s.Attribution.ClickID,
		s.Attribution.ButtonText, s.Attribution.ButtonPayload,
	)
	created, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

func (st *PgStore) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE sessions SET last_activity_at = $2, followup_sent = FALSE WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (st *PgStore) SetPaused(ctx context.Context, id string, paused bool) error {
	tag, err := st.pool.Exec(ctx,
		`UPDATE sessions SET is_paused = $2 WHERE id = $1`, id, paused)
	if err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FillAttribution uses NULLIF/COALESCE so a column is only written when its
// current value is the empty string. Set-once semantics live in the database,
// not in racy read-modify-write code.
func (st *PgStore) FillAttribution(ctx context.Context, id string, attr Attribution) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE sessions SET
			referral_source_type = COALESCE(NULLIF(referral_source_type, ''), $2),
			referral_source_id   = COALESCE(NULLIF(referral_source_id, ''), $3),
			referral_source_url  = COALESCE(NULLIF(referral_source_url, ''), $4),
			referral_headline    = COALESCE(NULLIF(referral_headline, ''), $5),
			referral_body        = COALESCE(NULLIF(referral_body, ''), $6),
			ctwa_clid            = COALESCE(NULLIF(ctwa_clid, ''), $7),
			button_text          = COALESCE(NULLIF(button_text, ''), $8),
			button_payload       = COALESCE(NULLIF(button_payload, ''), $9)
		WHERE id = $1`,
		id, attr.SourceType, attr.SourceID, attr.SourceURL,
		attr.Headline, attr.Body, attr.ClickID, attr.ButtonText, attr.ButtonPayload)
	if err != nil {
		return fmt.Errorf("fill attribution: %w", err)
	}
	return nil
}

func (st *PgStore) SetFollowupSent(ctx context.Context, id string) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE sessions SET followup_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set followup sent: %w", err)
	}
	return nil
}

func (st *PgStore) ListInactive(ctx context.Context, cutoff time.Time) ([]Session, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		WHERE last_activity_at < $1 AND followup_sent = FALSE AND is_paused = FALSE
		ORDER BY last_activity_at`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("list inactive sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (st *PgStore) AppendMessage(ctx context.Context, m MessageRecord) (MessageRecord, error) {
	row := st.pool.QueryRow(ctx,
		`INSERT INTO messages (session_id, role, content, provider_message_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, session_id, role, content, COALESCE(provider_message_id, ''), created_at`,
		m.SessionID, m.Role, m.Content, m.ProviderMessageID)

	var stored MessageRecord
	err := row.Scan(&stored.ID, &stored.SessionID, &stored.Role, &stored.Content,
		&stored.ProviderMessageID, &stored.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return MessageRecord{}, ErrDuplicateMessage
		}
		return MessageRecord{}, fmt.Errorf("append message: %w", err)
	}
	return stored, nil
}

func (st *PgStore) History(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := st.pool.Query(ctx,
		`SELECT id, session_id, role, content, COALESCE(provider_message_id, ''), created_at
		FROM (
			SELECT * FROM messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var history []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.ProviderMessageID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

func (st *PgStore) HasProviderMessage(ctx context.Context, providerMessageID string) (bool, error) {
	var exists bool
	err := st.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE provider_message_id = $1)`,
		providerMessageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check provider message: %w", err)
	}
	return exists, nil
}
