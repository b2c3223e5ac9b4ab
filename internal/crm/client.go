package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Contact is the registrant's identity block. The remote API rejects payloads
// without a first and last name, so callers must always fill both.
type Contact struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone"`
	Source     string `json:"source,omitempty"`
	LeadSource string `json:"lead_source,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Details carries the qualification data attached to the registrant.
type Details struct {
	InterestLevel  string `json:"interest_level,omitempty"`
	BudgetMin      int64  `json:"budget_min,omitempty"`
	BudgetMax      int64  `json:"budget_max,omitempty"`
	PropertyType   string `json:"property_type,omitempty"`
	CityInterest   string `json:"city_interest,omitempty"`
	VisitRequested bool   `json:"visit_requested"`
	CallRequested  bool   `json:"call_requested"`
	InfoRequested  bool   `json:"information_requested"`
}

// Payload is the shared field mapping used by both create and update calls.
type Payload struct {
	ProjectID    int     `json:"property_id"`
	ProjectName  string  `json:"property_name"`
	Contact      Contact `json:"contact"`
	Details      Details `json:"lead_details"`
	Summary      string  `json:"conversation_summary,omitempty"`
	RegisteredAt string  `json:"registered_at"`
}

// RegistrantAPI is the remote CRM surface the router depends on. The api key
// is passed per call because each property carries its own credential.
type RegistrantAPI interface {
	Search(ctx context.Context, apiKey, phone, email string) (remoteID string, found bool, err error)
	Create(ctx context.Context, apiKey string, p Payload) (remoteID string, err error)
	Update(ctx context.Context, apiKey, remoteID string, p Payload) error
}

// Client talks to the Lasso-style registrant HTTP API with bearer auth.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a registrant API client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("service", "crm_client")),
	}
}

type searchRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

type searchResponse struct {
	Leads []struct {
		ID string `json:"id"`
	} `json:"leads"`
}

func (c *Client) Search(ctx context.Context, apiKey, phone, email string) (string, bool, error) {
	var resp searchResponse
	err := c.do(ctx, apiKey, http.MethodPost, "/api/v1/leads/search",
		searchRequest{Phone: phone, Email: email}, &resp)
	if err != nil {
		return "", false, fmt.Errorf("search registrant: %w", err)
	}
	if len(resp.Leads) == 0 {
		return "", false, nil
	}
	return resp.Leads[0].ID, true, nil
}

type createResponse struct {
	ID     string `json:"id"`
	LeadID string `json:"lead_id"`
}

func (c *Client) Create(ctx context.Context, apiKey string, p Payload) (string, error) {
	var resp createResponse
	err := c.do(ctx, apiKey, http.MethodPost, "/api/v1/leads", p, &resp)
	if err != nil {
		return "", fmt.Errorf("create registrant: %w", err)
	}
	id := resp.ID
	if id == "" {
		id = resp.LeadID
	}
	if id == "" {
		return "", fmt.Errorf("create registrant: response carries no id")
	}
	return id, nil
}

func (c *Client) Update(ctx context.Context, apiKey, remoteID string, p Payload) error {
	if err := c.do(ctx, apiKey, http.MethodPut, "/api/v1/leads/"+remoteID, p, nil); err != nil {
		return fmt.Errorf("update registrant %s: %w", remoteID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
