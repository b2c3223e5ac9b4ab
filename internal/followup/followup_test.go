package followup

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninalabs/ninabot/internal/config"
	"github.com/ninalabs/ninabot/internal/messaging"
	"github.com/ninalabs/ninabot/internal/session"
)

type fakeSessions struct {
	inactive   []session.Session
	cutoffSeen time.Time
	marked     []string
}

func (f *fakeSessions) ListInactive(_ context.Context, cutoff time.Time) ([]session.Session, error) {
	f.cutoffSeen = cutoff
	return f.inactive, nil
}

func (f *fakeSessions) MarkFollowupSent(_ context.Context, id string) error {
	f.marked = append(f.marked, id)
	return nil
}

type fakeTexter struct {
	sent    []string
	blocked map[string]bool
}

func (f *fakeTexter) SendText(_ context.Context, to, _ string) (string, error) {
	if f.blocked[to] {
		return "", messaging.ErrBlocked
	}
	f.sent = append(f.sent, to)
	return "SM1", nil
}

func testJob(sessions *fakeSessions, sender *fakeTexter) *Job {
	cfg := config.FollowupConfig{
		Enabled:            true,
		Pattern:            "@every 15m",
		InactiveAfterHours: 12,
		Message:            "¿Sigues ahí?",
	}
	return New(cfg, sessions, sender, slog.Default())
}

func TestRunOnceSendsAndMarks(t *testing.T) {
	sessions := &fakeSessions{inactive: []session.Session{
		{ID: "s1", Sender: "whatsapp:+5215550001111"},
		{ID: "s2", Sender: "whatsapp:+5215550002222"},
	}}
	sender := &fakeTexter{}
	j := testJob(sessions, sender)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	j.RunOnce()

	assert.Equal(t, now.Add(-12*time.Hour), sessions.cutoffSeen)
	assert.Equal(t, []string{"whatsapp:+5215550001111", "whatsapp:+5215550002222"}, sender.sent)
	assert.Equal(t, []string{"s1", "s2"}, sessions.marked)
}

func TestRunOnceMarksBlockedWithoutSending(t *testing.T) {
	sessions := &fakeSessions{inactive: []session.Session{
		{ID: "s1", Sender: "whatsapp:+5215550001111"},
	}}
	sender := &fakeTexter{blocked: map[string]bool{"whatsapp:+5215550001111": true}}
	j := testJob(sessions, sender)

	j.RunOnce()

	assert.Empty(t, sender.sent)
	assert.Equal(t, []string{"s1"}, sessions.marked)
}

func TestStartDisabledIsNoop(t *testing.T) {
	j := New(config.FollowupConfig{Enabled: false}, &fakeSessions{}, &fakeTexter{}, slog.Default())
	require.NoError(t, j.Start())
}

func TestStartRejectsBadPattern(t *testing.T) {
	cfg := config.FollowupConfig{Enabled: true, Pattern: "not a cron expression"}
	j := New(cfg, &fakeSessions{}, &fakeTexter{}, slog.Default())
	assert.Error(t, j.Start())
}
