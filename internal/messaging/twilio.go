// Package messaging wraps the WhatsApp messaging provider: outbound text,
// media and location delivery with markdown cleanup, blocklist suppression
// and a send rate limit.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"

	"github.com/ninalabs/ninabot/internal/config"
)

// ErrBlocked indicates the recipient is on the blocked-number list.
var ErrBlocked = errors.New("recipient is blocked")

// Sender delivers outbound messages. Implementations return the provider's
// delivery id on success.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendMedia(ctx context.Context, to, mediaURL, caption string) (string, error)
	SendLocation(ctx context.Context, to string, lat, lon float64, label string) (string, error)
}

// Blocklist decides whether outbound delivery to a number is suppressed.
type Blocklist interface {
	IsBlocked(ctx context.Context, phone string) (bool, error)
}

// TwilioSender sends WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	client    *twilio.RestClient
	from      string
	statusURL string
	limiter   *rate.Limiter
	blocklist Blocklist
	logger    *slog.Logger
}

// NewTwilioSender creates a TwilioSender from config.
func NewTwilioSender(cfg config.TwilioConfig, blocklist Blocklist, logger *slog.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{
		client:    client,
		from:      cfg.WhatsAppNumber,
		statusURL: cfg.StatusCallbackURL,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendRatePerSecond), cfg.SendRatePerSecond),
		blocklist: blocklist,
		logger:    logger.With(slog.String("service", "messaging")),
	}
}

func (s *TwilioSender) SendText(ctx context.Context, to, body string) (string, error) {
	params := &openapi.CreateMessageParams{}
	params.SetBody(CleanMarkdown(body))
	return s.send(ctx, to, params)
}

func (s *TwilioSender) SendMedia(ctx context.Context, to, mediaURL, caption string) (string, error) {
	params := &openapi.CreateMessageParams{}
	params.SetMediaUrl([]string{mediaURL})
	if caption != "" {
		params.SetBody(CleanMarkdown(caption))
	}
	return s.send(ctx, to, params)
}

func (s *TwilioSender) SendLocation(ctx context.Context, to string, lat, lon float64, label string) (string, error) {
	params := &openapi.CreateMessageParams{}
	params.SetBody(label)
	params.SetPersistentAction([]string{fmt.Sprintf("geo:%f,%f|%s", lat, lon, label)})
	return s.send(ctx, to, params)
}

func (s *TwilioSender) send(ctx context.Context, to string, params *openapi.CreateMessageParams) (string, error) {
	blocked, err := s.blocklist.IsBlocked(ctx, to)
	if err != nil {
		s.logger.Warn("blocklist lookup failed", slog.Any("error", err))
	}
	if blocked {
		s.logger.Info("send suppressed for blocked number", slog.String("to", to))
		return "", ErrBlocked
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	params.SetFrom(whatsappAddr(s.from))
	params.SetTo(whatsappAddr(to))
	if s.statusURL != "" {
		params.SetStatusCallback(s.statusURL)
	}

	msg, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send: %w", err)
	}
	sid := ""
	if msg.Sid != nil {
		sid = *msg.Sid
	}
	s.logger.Debug("message sent", slog.String("to", to), slog.String("sid", sid))
	return sid, nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
