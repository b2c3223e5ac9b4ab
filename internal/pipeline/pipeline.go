// Package pipeline runs the message intake flow: validation, deduplication,
// debouncing, session resolution, AI reply generation, action dispatch, lead
// nurturing and outbound delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ninalabs/ninabot/internal/ai"
	"github.com/ninalabs/ninabot/internal/debounce"
	"github.com/ninalabs/ninabot/internal/dispatch"
	"github.com/ninalabs/ninabot/internal/messaging"
	"github.com/ninalabs/ninabot/internal/session"
)

// FallbackReply is sent when the AI orchestrator fails or times out.
const FallbackReply = "Disculpa, tuve un problema para procesar tu mensaje. ¿Podrías repetirlo?"

const historyLimit = 20

// Envelope is one normalized inbound message, channel-agnostic.
type Envelope struct {
	Sender            string
	Platform          string
	DisplayName       string
	Body              string
	MediaURL          string
	MediaContentType  string
	ProviderMessageID string
	Attribution       session.Attribution
}

// Outcome reports what the pipeline did with an envelope.
type Outcome struct {
	SessionID string            `json:"session_id,omitempty"`
	Reply     string            `json:"reply,omitempty"`
	Actions   []dispatch.Result `json:"actions,omitempty"`
	Deferred  bool              `json:"deferred,omitempty"`
	Duplicate bool              `json:"duplicate,omitempty"`
	Paused    bool              `json:"paused,omitempty"`
}

// Nurturer reads passive buying signals out of raw message text.
type Nurturer interface {
	Nurture(ctx context.Context, phone, displayName, text string)
}

// ActionRunner executes the orchestrator's requested actions.
type ActionRunner interface {
	ExecuteAll(ctx context.Context, sender, displayName string, actions []ai.Action) []dispatch.Result
}

// Pipeline wires the intake stages together.
type Pipeline struct {
	coalescer *debounce.Coalescer
	sessions  *session.Service
	orch      ai.Orchestrator
	actions   ActionRunner
	leads     Nurturer
	sender    messaging.Sender
	logger    *slog.Logger

	// wait pauses between accepting a message and flushing the buffer so
	// trailing fragments can merge in. Tests replace it.
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline.
func New(coalescer *debounce.Coalescer, sessions *session.Service, orch ai.Orchestrator, actions ActionRunner, leads Nurturer, sender messaging.Sender, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		coalescer: coalescer,
		sessions:  sessions,
		orch:      orch,
		actions:   actions,
		leads:     leads,
		sender:    sender,
		logger:    logger.With(slog.String("service", "pipeline")),
		wait:      sleepCtx,
	}
}

// Process runs one envelope through the full flow. Errors are returned only
// for infrastructure failures; conversational problems (blocked number, AI
// timeout) degrade gracefully inside.
func (p *Pipeline) Process(ctx context.Context, env Envelope) (Outcome, error) {
	if err := validate(env); err != nil {
		return Outcome{}, err
	}

	text := env.Body
	if env.MediaURL != "" && isAudio(env.MediaContentType) {
		transcript, err := p.orch.Transcribe(ctx, env.MediaURL)
		if err != nil {
			p.logger.Warn("transcription failed",
				slog.String("sender", env.Sender), slog.Any("error", err))
			transcript = "[audio no transcrito]"
		}
		text = strings.TrimSpace(text + "\n" + transcript)
	}

	dup, err := p.sessions.IsDuplicate(ctx, env.ProviderMessageID)
	if err != nil {
		return Outcome{}, err
	}
	if dup {
		p.logger.Debug("duplicate delivery dropped",
			slog.String("provider_message_id", env.ProviderMessageID))
		return Outcome{Duplicate: true}, nil
	}

	_, _, processNow := p.coalescer.Submit(env.Sender, text, env.ProviderMessageID)
	if !processNow {
		// Merged into an open buffer; the request that opened it will
		// flush this fragment.
		return Outcome{Deferred: true}, nil
	}

	outcome, err := p.respond(ctx, env)
	if err != nil {
		p.coalescer.Cleanup(env.Sender)
		return Outcome{}, err
	}
	return outcome, nil
}

// respond owns the buffer opened by Submit and drives the conversation turn.
func (p *Pipeline) respond(ctx context.Context, env Envelope) (Outcome, error) {
	sess, err := p.sessions.Resolve(ctx, env.Sender, env.Platform, env.DisplayName, env.Attribution)
	if err != nil {
		return Outcome{}, err
	}

	// Let trailing fragments land before taking the buffer.
	if err := p.wait(ctx, p.coalescer.Window()); err != nil {
		return Outcome{}, err
	}
	text, providerID, ok := p.coalescer.Flush(env.Sender)
	if !ok {
		// A concurrent turn took the buffer.
		return Outcome{SessionID: sess.ID, Deferred: true}, nil
	}

	if _, err := p.sessions.RecordInbound(ctx, sess.ID, text, providerID); err != nil {
		if errors.Is(err, session.ErrDuplicateMessage) {
			return Outcome{SessionID: sess.ID, Duplicate: true}, nil
		}
		return Outcome{}, err
	}

	if sess.IsPaused {
		p.logger.Info("session paused, reply suppressed", slog.String("session_id", sess.ID))
		return Outcome{SessionID: sess.ID, Paused: true}, nil
	}

	history, err := p.sessions.History(ctx, sess.ID, historyLimit)
	if err != nil {
		return Outcome{}, err
	}

	reply, actions := p.generate(ctx, sess, history, text)
	results := p.actions.ExecuteAll(ctx, env.Sender, env.DisplayName, actions)

	nurturePhone := env.Sender
	if env.Platform == "web" {
		// Visitor ids are not phone numbers; nurturing needs a reachable
		// identity and web visitors qualify through tool calls instead.
		nurturePhone = ""
	}
	p.leads.Nurture(ctx, nurturePhone, env.DisplayName, text)

	if reply != "" {
		if _, err := p.sender.SendText(ctx, env.Sender, reply); err != nil {
			if !errors.Is(err, messaging.ErrBlocked) {
				p.logger.Error("reply delivery failed",
					slog.String("session_id", sess.ID), slog.Any("error", err))
			}
		} else if _, err := p.sessions.RecordOutbound(ctx, sess.ID, reply); err != nil {
			p.logger.Error("record outbound failed",
				slog.String("session_id", sess.ID), slog.Any("error", err))
		}
	}

	return Outcome{SessionID: sess.ID, Reply: reply, Actions: results}, nil
}

// generate asks the orchestrator for a reply; any failure yields the fallback
// and no actions.
func (p *Pipeline) generate(ctx context.Context, sess session.Session, history []session.MessageRecord, text string) (string, []ai.Action) {
	msgs := make([]ai.Message, 0, len(history))
	for _, m := range history {
		// The just-recorded inbound message is passed separately.
		if m.Role == session.RoleUser && m.Content == text {
			continue
		}
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	reply, actions, err := p.orch.GenerateReply(ctx, msgs, text, ai.SessionContext{
		Sender:      sess.Sender,
		Platform:    sess.Platform,
		DisplayName: sess.DisplayName,
		Attribution: sess.Attribution.SourceType,
	})
	if err != nil {
		p.logger.Warn("reply generation failed",
			slog.String("session_id", sess.ID), slog.Any("error", err))
		return FallbackReply, nil
	}
	if reply == "" && len(actions) == 0 {
		return FallbackReply, nil
	}
	return reply, actions
}

func validate(env Envelope) error {
	if strings.TrimSpace(env.Sender) == "" {
		return fmt.Errorf("envelope: sender is required")
	}
	if strings.TrimSpace(env.Body) == "" && env.MediaURL == "" {
		return fmt.Errorf("envelope: empty message")
	}
	return nil
}

func isAudio(contentType string) bool {
	return strings.HasPrefix(contentType, "audio/")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
