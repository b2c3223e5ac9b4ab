package crm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ninalabs/ninabot/internal/config"
	"github.com/ninalabs/ninabot/internal/lead"
)

// InjectResult reports one property's injection outcome. CRM failures are
// data, never errors that propagate to the caller.
type InjectResult struct {
	Success     bool     `json:"success"`
	PropertyKey string   `json:"property_key"`
	LeadID      string   `json:"lead_id,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// MultiResult aggregates per-property injections. Partial success counts as
// overall success.
type MultiResult struct {
	Success      bool                    `json:"success"`
	SuccessCount int                     `json:"successful_injections"`
	FailCount    int                     `json:"failed_injections"`
	PerProperty  map[string]InjectResult `json:"property_results"`
}

// Router maps property keys to credentials and performs idempotent upserts
// against the registrant API.
type Router struct {
	api         RegistrantAPI
	properties  map[string]config.PropertyConfig
	countryCode string
	fallback    string
	logger      *slog.Logger
}

// NewRouter creates a Router from the configured property table.
func NewRouter(api RegistrantAPI, cfg config.CRMConfig, logger *slog.Logger) *Router {
	props := make(map[string]config.PropertyConfig, len(cfg.Properties))
	for _, p := range cfg.Properties {
		props[strings.ToLower(p.Key)] = p
	}
	return &Router{
		api:         api,
		properties:  props,
		countryCode: cfg.CountryCode,
		fallback:    cfg.FallbackProperty,
		logger:      logger.With(slog.String("service", "crm_router")),
	}
}

// Properties returns the configured property table for the operator API.
func (r *Router) Properties() []config.PropertyConfig {
	out := make([]config.PropertyConfig, 0, len(r.properties))
	for _, p := range r.properties {
		out = append(out, p)
	}
	return out
}

// FallbackProperty returns the key used when inference finds nothing.
func (r *Router) FallbackProperty() string { return r.fallback }

// InjectLead upserts one lead into one property. An unknown key or a property
// without credentials yields success=false with an explicit error string;
// neither ever panics or raises past this boundary.
func (r *Router) InjectLead(ctx context.Context, l lead.QualifiedLead, propertyKey string) InjectResult {
	result := InjectResult{PropertyKey: propertyKey}

	prop, ok := r.properties[strings.ToLower(propertyKey)]
	if !ok {
		result.Errors = append(result.Errors, "unknown property key: "+propertyKey)
		return result
	}
	if prop.APIKey == "" {
		// Expected while credentials are provisioned property by property;
		// distinct from a transport failure.
		result.Errors = append(result.Errors, "property not configured: "+propertyKey)
		return result
	}

	payload := r.buildPayload(l, prop)

	remoteID, found, err := r.api.Search(ctx, prop.APIKey, payload.Contact.Phone, payload.Contact.Email)
	if err != nil {
		r.logger.Error("registrant search failed",
			slog.String("property", propertyKey),
			slog.Any("error", err))
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if found {
		if err := r.api.Update(ctx, prop.APIKey, remoteID, payload); err != nil {
			r.logger.Error("registrant update failed",
				slog.String("property", propertyKey),
				slog.String("remote_id", remoteID),
				slog.Any("error", err))
			result.Errors = append(result.Errors, err.Error())
			return result
		}
		result.Success = true
		result.LeadID = remoteID
		return result
	}

	remoteID, err = r.api.Create(ctx, prop.APIKey, payload)
	if err != nil {
		r.logger.Error("registrant create failed",
			slog.String("property", propertyKey),
			slog.Any("error", err))
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Success = true
	result.LeadID = remoteID
	return result
}

// InjectLeadMulti attempts every key independently; one property's failure
// never aborts the others.
func (r *Router) InjectLeadMulti(ctx context.Context, l lead.QualifiedLead, propertyKeys []string) MultiResult {
	multi := MultiResult{PerProperty: make(map[string]InjectResult, len(propertyKeys))}
	for _, key := range propertyKeys {
		res := r.InjectLead(ctx, l, key)
		multi.PerProperty[key] = res
		if res.Success {
			multi.SuccessCount++
		} else {
			multi.FailCount++
		}
	}
	multi.Success = multi.SuccessCount > 0
	return multi
}

// buildPayload is the one field-mapping routine shared by create and update.
// It always emits a non-empty first+last name pair: the remote API rejects
// incomplete names, so missing parts are derived from the phone digits.
func (r *Router) buildPayload(l lead.QualifiedLead, prop config.PropertyConfig) Payload {
	phone := NormalizePhone(l.Phone, r.countryCode)
	first, last := splitName(l.Name, phone)

	notes := "Lead from Ninabot"
	if l.InterestReason != "" {
		notes += " - " + l.InterestReason
	}

	return Payload{
		ProjectID:   prop.ProjectID,
		ProjectName: prop.Name,
		Contact: Contact{
			FirstName:  first,
			LastName:   last,
			Email:      l.Email,
			Phone:      phone,
			Source:     l.Source,
			LeadSource: "Ninabot",
			Notes:      notes,
		},
		Details: Details{
			InterestLevel:  interestLevel(l.PurchaseUrgency),
			BudgetMin:      l.BudgetMin,
			BudgetMax:      l.BudgetMax,
			PropertyType:   l.PropertyType,
			CityInterest:   l.CityOfInterest,
			VisitRequested: l.WantsVisit,
			CallRequested:  l.WantsCall,
			InfoRequested:  l.WantsInfo,
		},
		Summary:      l.ConversationSummary,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func splitName(name, phone string) (first, last string) {
	tokens := strings.Fields(name)
	switch {
	case len(tokens) >= 2:
		return tokens[0], strings.Join(tokens[1:], " ")
	case len(tokens) == 1:
		first = tokens[0]
	default:
		first = "Cliente"
	}
	last = "WA" + phoneSuffix(phone)
	return first, last
}

func phoneSuffix(phone string) string {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	if digits == "" {
		return "0000"
	}
	return digits
}

func interestLevel(urgency string) string {
	switch strings.ToLower(urgency) {
	case "alto", "alta", "high", "urgente", "inmediata":
		return "high"
	case "bajo", "baja", "low":
		return "low"
	default:
		return "medium"
	}
}
