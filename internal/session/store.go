package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no session exists for the given key.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicateMessage indicates the provider message id was already stored.
	ErrDuplicateMessage = errors.New("duplicate provider message id")
)

// Store persists sessions and their message history.
type Store interface {
	GetBySender(ctx context.Context, sender, platform string) (Session, error)
	GetByID(ctx context.Context, id string) (Session, error)
	Create(ctx context.Context, s Session) (Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	SetPaused(ctx context.Context, id string, paused bool) error
	// FillAttribution writes only the attribution fields that are still empty.
	FillAttribution(ctx context.Context, id string, attr Attribution) error
	SetFollowupSent(ctx context.Context, id string) error
	// ListInactive returns sessions with no activity since the cutoff that
	// have not yet received a follow-up message.
	ListInactive(ctx context.Context, cutoff time.Time) ([]Session, error)

	// AppendMessage stores a message, returning ErrDuplicateMessage when the
	// provider message id is already present.
	AppendMessage(ctx context.Context, m MessageRecord) (MessageRecord, error)
	History(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error)
	HasProviderMessage(ctx context.Context, providerMessageID string) (bool, error)
}
