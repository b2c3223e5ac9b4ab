// Package followup nudges conversations that went quiet. A cron job scans for
// sessions past the inactivity cutoff and sends each one templated re-engagement
// message, at most once per quiet period.
package followup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ninalabs/ninabot/internal/config"
	"github.com/ninalabs/ninabot/internal/messaging"
	"github.com/ninalabs/ninabot/internal/session"
)

// DefaultMessage is sent when no template is configured.
const DefaultMessage = "¡Hola! Soy Nina de Residencias. ¿Sigues interesado en conocer más sobre nuestras propiedades? Con gusto resuelvo tus dudas."

// Texter sends one plain text message.
type Texter interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// Sessions is the slice of the session service the job needs.
type Sessions interface {
	ListInactive(ctx context.Context, cutoff time.Time) ([]session.Session, error)
	MarkFollowupSent(ctx context.Context, id string) error
}

// Job sends follow-up nudges on a cron schedule.
type Job struct {
	cfg      config.FollowupConfig
	sessions Sessions
	sender   Texter
	cron     *cron.Cron
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the follow-up job.
func New(cfg config.FollowupConfig, sessions Sessions, sender Texter, logger *slog.Logger) *Job {
	return &Job{
		cfg:      cfg,
		sessions: sessions,
		sender:   sender,
		cron:     cron.New(),
		logger:   logger.With(slog.String("service", "followup")),
		now:      time.Now,
	}
}

// Start schedules the job. Disabled configuration is a no-op.
func (j *Job) Start() error {
	if !j.cfg.Enabled {
		j.logger.Info("follow-up job disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(j.cfg.Pattern, j.RunOnce); err != nil {
		return fmt.Errorf("schedule follow-up job: %w", err)
	}
	j.cron.Start()
	j.logger.Info("follow-up job scheduled", slog.String("pattern", j.cfg.Pattern))
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce performs a single scan. Exposed for the cron trigger and tests.
func (j *Job) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.cfg.InactiveAfter())
	sessions, err := j.sessions.ListInactive(ctx, cutoff)
	if err != nil {
		j.logger.Error("list inactive sessions", slog.Any("error", err))
		return
	}
	if len(sessions) == 0 {
		return
	}

	body := j.cfg.Message
	if body == "" {
		body = DefaultMessage
	}

	sent := 0
	for _, s := range sessions {
		if _, err := j.sender.SendText(ctx, s.Sender, body); err != nil {
			if errors.Is(err, messaging.ErrBlocked) {
				// Blocked numbers stay quiet for good; marking avoids
				// rescanning them every run.
				if err := j.sessions.MarkFollowupSent(ctx, s.ID); err != nil {
					j.logger.Error("mark follow-up sent",
						slog.String("session_id", s.ID), slog.Any("error", err))
				}
				continue
			}
			j.logger.Warn("follow-up send failed",
				slog.String("session_id", s.ID), slog.Any("error", err))
			continue
		}
		// Mark even before delivery confirmation: one nudge per quiet
		// period, never a retry storm.
		if err := j.sessions.MarkFollowupSent(ctx, s.ID); err != nil {
			j.logger.Error("mark follow-up sent",
				slog.String("session_id", s.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	j.logger.Info("follow-up scan complete",
		slog.Int("candidates", len(sessions)), slog.Int("sent", sent))
}
