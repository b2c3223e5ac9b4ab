package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service owns session resolution and message persistence.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a session Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With(slog.String("service", "session")),
	}
}

// Resolve finds or lazily creates the session for a sender. Attribution on an
// existing session is filled set-once; values already present are kept.
func (s *Service) Resolve(ctx context.Context, sender, platform, displayName string, attr Attribution) (Session, error) {
	existing, err := s.store.GetBySender(ctx, sender, platform)
	if errors.Is(err, ErrNotFound) {
		created, err := s.store.Create(ctx, Session{
			Sender:      sender,
			Platform:    platform,
			DisplayName: displayName,
			Attribution: attr,
		})
		if err != nil {
			return Session{}, err
		}
		s.logger.Info("session created",
			slog.String("session_id", created.ID),
			slog.String("platform", platform))
		return created, nil
	}
	if err != nil {
		return Session{}, err
	}

	if !attr.Empty() {
		if err := s.store.FillAttribution(ctx, existing.ID, attr); err != nil {
			s.logger.Warn("fill attribution failed",
				slog.String("session_id", existing.ID),
				slog.Any("error", err))
		}
	}
	if err := s.store.Touch(ctx, existing.ID, time.Now()); err != nil {
		s.logger.Warn("touch failed",
			slog.String("session_id", existing.ID),
			slog.Any("error", err))
	}
	return existing, nil
}

// IsDuplicate reports whether a provider message id was already recorded.
// This is the dedup gate for at-least-once webhook delivery.
func (s *Service) IsDuplicate(ctx context.Context, providerMessageID string) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}
	return s.store.HasProviderMessage(ctx, providerMessageID)
}

// RecordInbound appends a user message. ErrDuplicateMessage means a retried
// delivery raced past the IsDuplicate check; callers treat it as a no-op.
func (s *Service) RecordInbound(ctx context.Context, sessionID, content, providerMessageID string) (MessageRecord, error) {
	rec, err := s.store.AppendMessage(ctx, MessageRecord{
		SessionID:         sessionID,
		Role:              RoleUser,
		Content:           content,
		ProviderMessageID: providerMessageID,
	})
	if err != nil {
		return MessageRecord{}, err
	}
	return rec, nil
}

// RecordOutbound appends an assistant message.
func (s *Service) RecordOutbound(ctx context.Context, sessionID, content string) (MessageRecord, error) {
	return s.store.AppendMessage(ctx, MessageRecord{
		SessionID: sessionID,
		Role:      RoleAssistant,
		Content:   content,
	})
}

// History returns the most recent messages for a session in chronological order.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	return s.store.History(ctx, sessionID, limit)
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.store.GetByID(ctx, id)
}

// SetPaused pauses or resumes AI processing for a session. While paused,
// inbound messages are still stored but no reply is generated.
func (s *Service) SetPaused(ctx context.Context, id string, paused bool) error {
	if err := s.store.SetPaused(ctx, id, paused); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	s.logger.Info("session pause changed",
		slog.String("session_id", id),
		slog.Bool("paused", paused))
	return nil
}

// ListInactive returns sessions idle since before the cutoff that have not
// been nudged yet.
func (s *Service) ListInactive(ctx context.Context, cutoff time.Time) ([]Session, error) {
	return s.store.ListInactive(ctx, cutoff)
}

// MarkFollowupSent flags a session so the follow-up job nudges it only once.
func (s *Service) MarkFollowupSent(ctx context.Context, id string) error {
	return s.store.SetFollowupSent(ctx, id)
}
