// Package session resolves senders to durable conversation sessions and
// stores the message history, including the idempotency key for webhook
// deduplication.
package session

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attribution records where a conversation came from (click-to-WhatsApp ads,
// referral links). Fields are set once: the first non-empty value wins.
type Attribution struct {
	SourceType    string `json:"source_type,omitempty"`
	SourceID      string `json:"source_id,omitempty"`
	SourceURL     string `json:"source_url,omitempty"`
	Headline      string `json:"headline,omitempty"`
	Body          string `json:"body,omitempty"`
	ClickID       string `json:"click_id,omitempty"`
	ButtonText    string `json:"button_text,omitempty"`
	ButtonPayload string `json:"button_payload,omitempty"`
}

// Empty reports whether no attribution field is set.
func (a Attribution) Empty() bool {
	return a == Attribution{}
}

// Session is a durable conversation thread for one sender on one platform.
type Session struct {
	ID                string      `json:"id"`
	Sender            string      `json:"sender"`
	Platform          string      `json:"platform"`
	DisplayName       string      `json:"display_name,omitempty"`
	ExternalThreadRef string      `json:"external_thread_ref,omitempty"`
	IsPaused          bool        `json:"is_paused"`
	FollowupSent      bool        `json:"followup_sent"`
	Attribution       Attribution `json:"attribution"`
	CreatedAt         time.Time   `json:"created_at"`
	LastActivityAt    time.Time   `json:"last_activity_at"`
}

// MessageRecord is one stored message. ProviderMessageID is unique when
// present and serves as the idempotency key for webhook redeliveries.
type MessageRecord struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
