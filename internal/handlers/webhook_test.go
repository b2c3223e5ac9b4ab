package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninalabs/ninabot/internal/pipeline"
)

type fakeProcessor struct {
	mu        sync.Mutex
	envelopes []pipeline.Envelope
	outcome   pipeline.Outcome
	err       error
}

func (f *fakeProcessor) Process(_ context.Context, env pipeline.Envelope) (pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes = append(f.envelopes, env)
	return f.outcome, f.err
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.envelopes)
}

func (f *fakeProcessor) last() pipeline.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.envelopes[len(f.envelopes)-1]
}

func postTwilioForm(h *WebhookHandler, form url.Values) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	_ = h.Receive(e.NewContext(req, rec))
	return rec
}

func TestReceiveAcknowledgesAndProcessesAsync(t *testing.T) {
	processor := &fakeProcessor{}
	h := NewWebhookHandler(slog.Default(), processor, "")

	form := url.Values{}
	form.Set("From", "whatsapp:+5215550001111")
	form.Set("ProfileName", "Laura")
	form.Set("Body", "Hola, busco casa en Mérida")
	form.Set("MessageSid", "SM123")

	rec := postTwilioForm(h, form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response></Response>")

	require.Eventually(t, func() bool { return processor.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	env := processor.last()
	assert.Equal(t, "whatsapp:+5215550001111", env.Sender)
	assert.Equal(t, "whatsapp", env.Platform)
	assert.Equal(t, "Laura", env.DisplayName)
	assert.Equal(t, "SM123", env.ProviderMessageID)
}

func TestReceiveMapsAttributionAndMedia(t *testing.T) {
	processor := &fakeProcessor{}
	h := NewWebhookHandler(slog.Default(), processor, "")

	form := url.Values{}
	form.Set("From", "whatsapp:+5215550001111")
	form.Set("Body", "vi su anuncio")
	form.Set("MessageSid", "SM124")
	form.Set("ReferralSourceType", "ad")
	form.Set("ReferralSourceId", "123456")
	form.Set("ReferralSourceUrl", "https://fb.me/abc")
	form.Set("ReferralHeadline", "Residencias en Yucatán")
	form.Set("ReferralCtwaClid", "clid-1")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.twilio.com/media/ME1")
	form.Set("MediaContentType0", "audio/ogg")

	rec := postTwilioForm(h, form)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool { return processor.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	env := processor.last()
	assert.Equal(t, "ad", env.Attribution.SourceType)
	assert.Equal(t, "123456", env.Attribution.SourceID)
	assert.Equal(t, "Residencias en Yucatán", env.Attribution.Headline)
	assert.Equal(t, "clid-1", env.Attribution.ClickID)
	assert.Equal(t, "https://api.twilio.com/media/ME1", env.MediaURL)
	assert.Equal(t, "audio/ogg", env.MediaContentType)
}

func TestReceiveIgnoresStatusCallbacks(t *testing.T) {
	processor := &fakeProcessor{}
	h := NewWebhookHandler(slog.Default(), processor, "")

	// Delivery receipts carry no body and no media.
	form := url.Values{}
	form.Set("From", "whatsapp:+5215550001111")
	form.Set("MessageSid", "SM125")
	form.Set("MessageStatus", "delivered")

	rec := postTwilioForm(h, form)
	assert.Equal(t, http.StatusOK, rec.Code)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, processor.count())
}

func TestReceiveRequiresSender(t *testing.T) {
	h := NewWebhookHandler(slog.Default(), &fakeProcessor{}, "")

	form := url.Values{}
	form.Set("Body", "hola")

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	err := h.Receive(e.NewContext(req, rec))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	processor := &fakeProcessor{}
	h := NewWebhookHandler(slog.Default(), processor, "twilio-auth-token")

	form := url.Values{}
	form.Set("From", "whatsapp:+5215550001111")
	form.Set("Body", "hola")

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("X-Twilio-Signature", "not-a-valid-signature")
	rec := httptest.NewRecorder()
	err := h.Receive(e.NewContext(req, rec))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
	assert.Zero(t, processor.count())
}
