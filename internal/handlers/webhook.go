package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/ninalabs/ninabot/internal/pipeline"
	"github.com/ninalabs/ninabot/internal/session"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// processTimeout bounds background processing of one webhook delivery.
const processTimeout = 2 * time.Minute

// Processor runs one inbound envelope through the intake pipeline.
type Processor interface {
	Process(ctx context.Context, env pipeline.Envelope) (pipeline.Outcome, error)
}

// WebhookHandler receives Twilio WhatsApp deliveries. Twilio retries on slow
// responses, so the reply is acknowledged immediately and processing happens
// in the background.
type WebhookHandler struct {
	processor Processor
	validator *twilioclient.RequestValidator
	logger    *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. An empty authToken disables
// signature validation (local development).
func NewWebhookHandler(log *slog.Logger, processor Processor, authToken string) *WebhookHandler {
	h := &WebhookHandler{
		processor: processor,
		logger:    log.With(slog.String("handler", "webhook")),
	}
	if authToken != "" {
		v := twilioclient.NewRequestValidator(authToken)
		h.validator = &v
	}
	return h
}

// Register mounts the provider webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/twilio", h.Receive)
}

// Receive acknowledges one Twilio delivery and processes it asynchronously.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	form := c.Request().PostForm

	if h.validator != nil {
		params := make(map[string]string, len(form))
		for k := range form {
			params[k] = form.Get(k)
		}
		url := c.Scheme() + "://" + c.Request().Host + c.Request().RequestURI
		signature := c.Request().Header.Get("X-Twilio-Signature")
		if !h.validator.Validate(url, params, signature) {
			h.logger.Warn("webhook signature rejected", slog.String("url", url))
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}

	env := envelopeFromTwilioForm(form.Get)
	if env.Sender == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "From is required")
	}
	if env.Body == "" && env.MediaURL == "" {
		// Delivery receipts and reactions arrive on the same webhook.
		return c.XMLBlob(http.StatusOK, []byte(emptyTwiML))
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		if _, err := h.processor.Process(ctx, env); err != nil {
			h.logger.Error("webhook processing failed",
				slog.String("sender", env.Sender), slog.Any("error", err))
		}
	}()

	return c.XMLBlob(http.StatusOK, []byte(emptyTwiML))
}

// envelopeFromTwilioForm maps the Twilio webhook form fields onto an envelope,
// including click-to-WhatsApp ad attribution.
func envelopeFromTwilioForm(get func(string) string) pipeline.Envelope {
	env := pipeline.Envelope{
		Sender:            get("From"),
		Platform:          "whatsapp",
		DisplayName:       get("ProfileName"),
		Body:              get("Body"),
		ProviderMessageID: get("MessageSid"),
		Attribution: session.Attribution{
			SourceType:    get("ReferralSourceType"),
			SourceID:      get("ReferralSourceId"),
			SourceURL:     get("ReferralSourceUrl"),
			Headline:      get("ReferralHeadline"),
			Body:          get("ReferralBody"),
			ClickID:       get("ReferralCtwaClid"),
			ButtonText:    get("ButtonText"),
			ButtonPayload: get("ButtonPayload"),
		},
	}
	if n, err := strconv.Atoi(get("NumMedia")); err == nil && n > 0 {
		env.MediaURL = get("MediaUrl0")
		env.MediaContentType = get("MediaContentType0")
	}
	return env
}
