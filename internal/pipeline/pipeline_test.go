package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninalabs/ninabot/internal/ai"
	"github.com/ninalabs/ninabot/internal/debounce"
	"github.com/ninalabs/ninabot/internal/dispatch"
	"github.com/ninalabs/ninabot/internal/session"
)

type fakeOrchestrator struct {
	mu          sync.Mutex
	reply       string
	actions     []ai.Action
	err         error
	transcript  string
	seenMessage string
	seenHistory []ai.Message
	calls       int
}

func (f *fakeOrchestrator) GenerateReply(_ context.Context, history []ai.Message, msg string, _ ai.SessionContext) (string, []ai.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seenMessage = msg
	f.seenHistory = history
	return f.reply, f.actions, f.err
}

func (f *fakeOrchestrator) Transcribe(_ context.Context, _ string) (string, error) {
	if f.transcript == "" {
		return "", errors.New("no transcript")
	}
	return f.transcript, nil
}

type fakeRunner struct {
	mu   sync.Mutex
	seen []ai.Action
}

func (f *fakeRunner) ExecuteAll(_ context.Context, _, _ string, actions []ai.Action) []dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, actions...)
	results := make([]dispatch.Result, len(actions))
	for i, a := range actions {
		results[i] = dispatch.Result{Action: a.Name, Success: true}
	}
	return results
}

type fakeNurturer struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeNurturer) Nurture(_ context.Context, _, _, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendText(_ context.Context, _, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return "SM1", nil
}

func (f *fakeSender) SendMedia(context.Context, string, string, string) (string, error) {
	return "SM2", nil
}

func (f *fakeSender) SendLocation(context.Context, string, float64, float64, string) (string, error) {
	return "SM3", nil
}

type fixture struct {
	pipeline  *Pipeline
	coalescer *debounce.Coalescer
	sessions  *session.Service
	orch      *fakeOrchestrator
	runner    *fakeRunner
	nurturer  *fakeNurturer
	sender    *fakeSender
}

func newFixture(orch *fakeOrchestrator) *fixture {
	f := &fixture{
		coalescer: debounce.New(50 * time.Millisecond),
		sessions:  session.NewService(session.NewMemoryStore(), slog.Default()),
		orch:      orch,
		runner:    &fakeRunner{},
		nurturer:  &fakeNurturer{},
		sender:    &fakeSender{},
	}
	f.pipeline = New(f.coalescer, f.sessions, orch, f.runner, f.nurturer, f.sender, slog.Default())
	f.pipeline.wait = func(context.Context, time.Duration) error { return nil }
	return f
}

func envelope(body, providerID string) Envelope {
	return Envelope{
		Sender:            "whatsapp:+5215550001111",
		Platform:          "whatsapp",
		DisplayName:       "Laura",
		Body:              body,
		ProviderMessageID: providerID,
	}
}

func TestProcessHappyPath(t *testing.T) {
	orch := &fakeOrchestrator{
		reply:   "¡Hola Laura! ¿En qué puedo ayudarte?",
		actions: []ai.Action{{Name: "send_brochure", Args: []byte(`{}`)}},
	}
	f := newFixture(orch)

	out, err := f.pipeline.Process(context.Background(), envelope("Hola, busco casa", "SM100"))
	require.NoError(t, err)

	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, orch.reply, out.Reply)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, "send_brochure", out.Actions[0].Action)
	assert.Equal(t, []string{orch.reply}, f.sender.sent)
	assert.Equal(t, []string{"Hola, busco casa"}, f.nurturer.texts)

	history, err := f.sessions.History(context.Background(), out.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, session.RoleAssistant, history[1].Role)
}

func TestProcessRejectsEmptyEnvelope(t *testing.T) {
	f := newFixture(&fakeOrchestrator{reply: "hola"})

	_, err := f.pipeline.Process(context.Background(), envelope("", ""))
	assert.Error(t, err)

	_, err = f.pipeline.Process(context.Background(), Envelope{Body: "hola"})
	assert.Error(t, err)
}

func TestProcessDropsDuplicateDeliveries(t *testing.T) {
	orch := &fakeOrchestrator{reply: "hola"}
	f := newFixture(orch)

	out1, err := f.pipeline.Process(context.Background(), envelope("Hola", "SM200"))
	require.NoError(t, err)
	assert.False(t, out1.Duplicate)

	out2, err := f.pipeline.Process(context.Background(), envelope("Hola", "SM200"))
	require.NoError(t, err)
	assert.True(t, out2.Duplicate)
	assert.Equal(t, 1, orch.calls)
}

func TestProcessCoalescesFragments(t *testing.T) {
	orch := &fakeOrchestrator{reply: "entendido"}
	f := newFixture(orch)

	// Hold the first turn at the wait point so the second fragment merges in.
	reachedWait := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.pipeline.wait = func(context.Context, time.Duration) error {
		once.Do(func() { close(reachedWait) })
		<-release
		return nil
	}

	done := make(chan Outcome, 1)
	go func() {
		out, err := f.pipeline.Process(context.Background(), envelope("Hola", "SM300"))
		assert.NoError(t, err)
		done <- out
	}()

	<-reachedWait
	out2, err := f.pipeline.Process(context.Background(), envelope("como estas", "SM301"))
	require.NoError(t, err)
	assert.True(t, out2.Deferred)

	close(release)
	out1 := <-done
	assert.Equal(t, "Hola como estas", orch.seenMessage)
	assert.Equal(t, "entendido", out1.Reply)
	assert.Equal(t, 1, orch.calls)
}

func TestProcessPausedSessionRecordsButStaysQuiet(t *testing.T) {
	orch := &fakeOrchestrator{reply: "hola"}
	f := newFixture(orch)

	out, err := f.pipeline.Process(context.Background(), envelope("Hola", "SM400"))
	require.NoError(t, err)
	require.NoError(t, f.sessions.SetPaused(context.Background(), out.SessionID, true))

	out2, err := f.pipeline.Process(context.Background(), envelope("¿Sigues ahí?", "SM401"))
	require.NoError(t, err)
	assert.True(t, out2.Paused)
	assert.Empty(t, out2.Reply)
	assert.Equal(t, 1, orch.calls)

	history, err := f.sessions.History(context.Background(), out.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "¿Sigues ahí?", history[2].Content)
}

func TestProcessFallsBackWhenOrchestratorFails(t *testing.T) {
	orch := &fakeOrchestrator{err: errors.New("deadline exceeded")}
	f := newFixture(orch)

	out, err := f.pipeline.Process(context.Background(), envelope("Hola", "SM500"))
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, out.Reply)
	assert.Empty(t, out.Actions)
	assert.Equal(t, []string{FallbackReply}, f.sender.sent)
}

func TestProcessTranscribesAudio(t *testing.T) {
	orch := &fakeOrchestrator{reply: "te escucho", transcript: "quiero agendar una visita"}
	f := newFixture(orch)

	env := envelope("", "SM600")
	env.MediaURL = "https://api.twilio.com/media/ME1"
	env.MediaContentType = "audio/ogg"

	out, err := f.pipeline.Process(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "te escucho", out.Reply)
	assert.Equal(t, "quiero agendar una visita", orch.seenMessage)
}

func TestProcessNurturesEvenWithoutActions(t *testing.T) {
	orch := &fakeOrchestrator{reply: "claro"}
	f := newFixture(orch)

	_, err := f.pipeline.Process(context.Background(), envelope("quiero comprar pronto", "SM700"))
	require.NoError(t, err)
	assert.Equal(t, []string{"quiero comprar pronto"}, f.nurturer.texts)
}
