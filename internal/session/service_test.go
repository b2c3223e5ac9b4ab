package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), slog.Default())
}

func TestResolveCreatesOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "whatsapp:+5215512345678", "whatsapp", "Ana", Attribution{})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := svc.Resolve(ctx, "whatsapp:+5215512345678", "whatsapp", "Ana", Attribution{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveAttributionSetOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Resolve(ctx, "s1", "whatsapp", "", Attribution{SourceType: "ad", SourceID: "123"})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "s1", "whatsapp", "", Attribution{SourceType: "organic", SourceURL: "https://fb.me/x"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ad", got.Attribution.SourceType, "first non-empty value wins")
	assert.Equal(t, "123", got.Attribution.SourceID)
	assert.Equal(t, "https://fb.me/x", got.Attribution.SourceURL, "empty fields are still fillable")
}

func TestDuplicateProviderMessage(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Resolve(ctx, "s1", "whatsapp", "", Attribution{})
	require.NoError(t, err)

	_, err = svc.RecordInbound(ctx, sess.ID, "hola", "SM123")
	require.NoError(t, err)

	dup, err := svc.IsDuplicate(ctx, "SM123")
	require.NoError(t, err)
	assert.True(t, dup)

	_, err = svc.RecordInbound(ctx, sess.ID, "hola", "SM123")
	assert.ErrorIs(t, err, ErrDuplicateMessage)

	history, err := svc.History(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "retried delivery must not append a second record")
}

func TestEmptyProviderIDNeverDuplicate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Resolve(ctx, "s1", "web", "", Attribution{})
	require.NoError(t, err)

	// Widget messages carry no provider id; two of them must both store.
	_, err = svc.RecordInbound(ctx, sess.ID, "hola", "")
	require.NoError(t, err)
	_, err = svc.RecordInbound(ctx, sess.ID, "hola", "")
	require.NoError(t, err)

	history, err := svc.History(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestHistoryOrderAndLimit(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Resolve(ctx, "s1", "whatsapp", "", Attribution{})
	require.NoError(t, err)

	for _, msg := range []string{"uno", "dos", "tres"} {
		_, err := svc.RecordInbound(ctx, sess.ID, msg, "")
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "dos", history[0].Content)
	assert.Equal(t, "tres", history[1].Content)
}

func TestListInactiveSkipsPausedAndNudged(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, slog.Default())
	ctx := context.Background()

	idle, err := svc.Resolve(ctx, "idle", "whatsapp", "", Attribution{})
	require.NoError(t, err)
	paused, err := svc.Resolve(ctx, "paused", "whatsapp", "", Attribution{})
	require.NoError(t, err)
	nudged, err := svc.Resolve(ctx, "nudged", "whatsapp", "", Attribution{})
	require.NoError(t, err)

	past := time.Now().Add(-24 * time.Hour)
	require.NoError(t, store.Touch(ctx, idle.ID, past))
	require.NoError(t, store.Touch(ctx, paused.ID, past))
	require.NoError(t, store.Touch(ctx, nudged.ID, past))
	require.NoError(t, svc.SetPaused(ctx, paused.ID, true))
	require.NoError(t, svc.MarkFollowupSent(ctx, nudged.ID))

	due, err := svc.ListInactive(ctx, time.Now().Add(-12*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, idle.ID, due[0].ID)
}
