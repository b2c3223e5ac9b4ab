package lead

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ninalabs/ninabot/internal/event"
)

// ErrNoIdentity indicates the fields carry neither a phone nor a name.
var ErrNoIdentity = errors.New("lead has no phone or name to resolve identity")

// InterestReasonCaptured marks leads created from passive info gathering.
const InterestReasonCaptured = "informacion_recopilada"

// InterestReasonDetected marks leads created by the inbound-text heuristic.
const InterestReasonDetected = "interes_detectado"

// Service merges qualification signals into customers and leads and publishes
// post-commit events for CRM sync and sales alerts.
type Service struct {
	store  Store
	events event.Publisher
	logger *slog.Logger
}

// NewService creates a lead Service.
func NewService(store Store, events event.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		logger: logger.With(slog.String("service", "lead")),
	}
}

// CaptureInfo folds passively gathered contact fields into the customer and
// lead records. Existing values win: this path only fills gaps.
func (s *Service) CaptureInfo(ctx context.Context, f Fields) (QualifiedLead, error) {
	f = normalize(f)
	if !f.Identity().Valid() {
		return QualifiedLead{}, ErrNoIdentity
	}

	customer, err := s.upsertCustomer(ctx, f, FillIfEmpty)
	if err != nil {
		return QualifiedLead{}, err
	}

	existing, err := s.store.FindLead(ctx, f.Identity())
	if errors.Is(err, ErrNotFound) {
		created, err := s.createLead(ctx, customer, f, RatingInitial, InterestReasonCaptured, "")
		if err != nil {
			return QualifiedLead{}, err
		}
		s.publish(created, false)
		return created, nil
	}
	if err != nil {
		return QualifiedLead{}, err
	}

	if MergeLead(&existing, f, FillIfEmpty) {
		if err := s.store.UpdateLead(ctx, existing); err != nil {
			return QualifiedLead{}, err
		}
	}
	s.publish(existing, existing.Rating == RatingHot)
	return existing, nil
}

// QualifyLead records an explicit qualification event. Unlike CaptureInfo it
// overwrites stored fields with the new signal; the rating still only moves
// forward.
func (s *Service) QualifyLead(ctx context.Context, f Fields) (QualifiedLead, error) {
	f = normalize(f)
	if !f.Identity().Valid() {
		return QualifiedLead{}, ErrNoIdentity
	}

	reason := f.InterestReason
	if reason == "" {
		reason = f.Motive
	}
	f.InterestReason = reason
	applyMotiveFlags(&f)

	customer, err := s.upsertCustomer(ctx, f, FillIfEmpty)
	if err != nil {
		return QualifiedLead{}, err
	}

	candidate := qualificationRating(f)
	summary := summaryFor(reason, f.PurchaseUrgency)

	existing, err := s.store.FindLead(ctx, f.Identity())
	if errors.Is(err, ErrNotFound) {
		created, err := s.createLead(ctx, customer, f, candidate, reason, summary)
		if err != nil {
			return QualifiedLead{}, err
		}
		s.publish(created, false)
		return created, nil
	}
	if err != nil {
		return QualifiedLead{}, err
	}

	wasHot := existing.Rating == RatingHot
	changed := MergeLead(&existing, f, AlwaysOverwrite)
	changed = mergeStr(&existing.ConversationSummary, summary, AlwaysOverwrite) || changed
	changed = BumpRating(&existing, candidate) || changed
	if changed {
		if err := s.store.UpdateLead(ctx, existing); err != nil {
			return QualifiedLead{}, err
		}
	}
	s.publish(existing, wasHot)
	return existing, nil
}

// Nurture runs the keyword heuristic over one inbound message and bumps the
// lead's rating when the text signals stronger intent. A lead is created on
// the spot when none exists and the text shows explicit interest.
func (s *Service) Nurture(ctx context.Context, phone, displayName, text string) {
	candidate := RateText(text)

	existing, err := s.store.FindLead(ctx, Identity{Phone: phone})
	if errors.Is(err, ErrNotFound) {
		if candidate < RatingWarm || phone == "" {
			return
		}
		f := normalize(Fields{Phone: phone, Name: displayName})
		customer, err := s.upsertCustomer(ctx, f, FillIfEmpty)
		if err != nil {
			s.logger.Warn("nurture customer upsert failed", slog.Any("error", err))
			return
		}
		created, err := s.createLead(ctx, customer, f, candidate, InterestReasonDetected, "")
		if err != nil {
			s.logger.Warn("nurture lead create failed", slog.Any("error", err))
			return
		}
		s.publish(created, false)
		return
	}
	if err != nil {
		s.logger.Warn("nurture lookup failed", slog.Any("error", err))
		return
	}

	wasHot := existing.Rating == RatingHot
	if !BumpRating(&existing, candidate) {
		return
	}
	if err := s.store.UpdateLead(ctx, existing); err != nil {
		s.logger.Warn("nurture update failed", slog.Any("error", err))
		return
	}
	s.publish(existing, wasHot)
}

// List returns leads for the operator API.
func (s *Service) List(ctx context.Context, f Filter) ([]QualifiedLead, error) {
	return s.store.ListLeads(ctx, f)
}

// Find returns the lead for an identity.
func (s *Service) Find(ctx context.Context, id Identity) (QualifiedLead, error) {
	return s.store.FindLead(ctx, id)
}

// MarkInjected records a successful CRM upsert. Called by the CRM sync worker.
func (s *Service) MarkInjected(ctx context.Context, leadID, crmLeadID string) error {
	return s.store.MarkInjected(ctx, leadID, crmLeadID)
}

func (s *Service) upsertCustomer(ctx context.Context, f Fields, p MergePolicy) (Customer, error) {
	existing, err := s.store.FindCustomer(ctx, f.Identity())
	if errors.Is(err, ErrNotFound) {
		created, err := s.store.CreateCustomer(ctx, Customer{
			Phone:          f.Phone,
			Name:           f.Name,
			Email:          f.Email,
			Source:         f.Source,
			CityOfInterest: f.CityOfInterest,
			PropertyType:   f.PropertyType,
			BudgetMin:      f.BudgetMin,
			BudgetMax:      f.BudgetMax,
		})
		if err != nil {
			return Customer{}, fmt.Errorf("upsert customer: %w", err)
		}
		return created, nil
	}
	if err != nil {
		return Customer{}, fmt.Errorf("upsert customer: %w", err)
	}

	if MergeCustomer(&existing, f, p) {
		if err := s.store.UpdateCustomer(ctx, existing); err != nil {
			return Customer{}, fmt.Errorf("upsert customer: %w", err)
		}
	}
	return existing, nil
}

func (s *Service) createLead(ctx context.Context, customer Customer, f Fields, rating Rating, reason, summary string) (QualifiedLead, error) {
	name := f.Name
	if name == "" {
		name = customer.Name
	}
	if f.InterestReason != "" {
		reason = f.InterestReason
	}
	created, err := s.store.CreateLead(ctx, QualifiedLead{
		CustomerID:          customer.ID,
		Phone:               f.Phone,
		Name:                name,
		Email:               f.Email,
		Source:              f.Source,
		CityOfInterest:      f.CityOfInterest,
		ProjectOfInterest:   f.ProjectOfInterest,
		PropertyType:        f.PropertyType,
		BudgetMin:           f.BudgetMin,
		BudgetMax:           f.BudgetMax,
		InterestReason:      reason,
		PurchaseUrgency:     f.PurchaseUrgency,
		PreferredContact:    f.PreferredContact,
		WantsVisit:          f.WantsVisit,
		WantsCall:           f.WantsCall,
		WantsInfo:           f.WantsInfo || reason == InterestReasonCaptured,
		Rating:              rating,
		ConversationSummary: summary,
	})
	if err != nil {
		return QualifiedLead{}, fmt.Errorf("create lead: %w", err)
	}
	s.logger.Info("lead created",
		slog.String("lead_id", created.ID),
		slog.String("rating", created.Rating.String()))
	return created, nil
}

// publish emits post-commit events. wasHot suppresses a duplicate alert for
// leads that already reached hot before this change.
func (s *Service) publish(l QualifiedLead, wasHot bool) {
	data, err := json.Marshal(l)
	if err != nil {
		s.logger.Error("marshal lead event", slog.Any("error", err))
		return
	}
	s.events.Publish(event.Event{Type: event.TypeLeadUpserted, Phone: l.Phone, Data: data})
	if l.Rating == RatingHot && !wasHot {
		s.events.Publish(event.Event{Type: event.TypeLeadHot, Phone: l.Phone, Data: data})
	}
}

// normalize fills derived fields: the parsed budget and the default source.
func normalize(f Fields) Fields {
	if f.BudgetText != "" && f.BudgetMin == 0 && f.BudgetMax == 0 {
		f.BudgetMin, f.BudgetMax = ParseBudget(f.BudgetText)
	}
	if f.Source == "" {
		f.Source = "WhatsApp"
	}
	return f
}

// applyMotiveFlags turns the motive into sticky contact-preference flags.
func applyMotiveFlags(f *Fields) {
	switch f.Motive {
	case MotiveVisit:
		f.WantsVisit = true
	case MotiveCall:
		f.WantsCall = true
	case MotiveInfo:
		f.WantsInfo = true
	}
}

// qualificationRating maps an explicit qualification to its floor rating:
// a visit or call request is hot, anything else explicit is warm.
func qualificationRating(f Fields) Rating {
	if f.WantsVisit || f.WantsCall || f.Motive == MotiveVisit || f.Motive == MotiveCall {
		return RatingHot
	}
	return RatingWarm
}

func summaryFor(reason, urgency string) string {
	if urgency == "" {
		urgency = "N/A"
	}
	switch reason {
	case "disponibilidad":
		return "Cliente interesado en disponibilidad de apartamentos. Urgencia: " + urgency
	case MotiveInfo:
		return "Cliente solicita información adicional. Urgencia: " + urgency
	case MotiveVisit:
		return "Cliente solicita visita al proyecto. Urgencia: " + urgency
	case MotiveCall:
		return "Cliente solicita llamada. Urgencia: " + urgency
	case "":
		return ""
	default:
		return "Lead calificado automáticamente con interés explícito: " + reason
	}
}
