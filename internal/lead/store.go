package lead

import (
	"context"
	"errors"
)

// ErrNotFound indicates no record matches the identity.
var ErrNotFound = errors.New("lead record not found")

// Filter narrows lead listings for the operator API.
type Filter struct {
	Source    string
	MinRating Rating
}

// Store persists customers and qualified leads.
type Store interface {
	FindCustomer(ctx context.Context, id Identity) (Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, c Customer) error

	FindLead(ctx context.Context, id Identity) (QualifiedLead, error)
	CreateLead(ctx context.Context, l QualifiedLead) (QualifiedLead, error)
	UpdateLead(ctx context.Context, l QualifiedLead) error
	ListLeads(ctx context.Context, f Filter) ([]QualifiedLead, error)

	// MarkInjected records a successful CRM upsert on the lead.
	MarkInjected(ctx context.Context, leadID, crmLeadID string) error
}
