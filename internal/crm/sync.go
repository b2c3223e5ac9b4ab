package crm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ninalabs/ninabot/internal/event"
	"github.com/ninalabs/ninabot/internal/lead"
)

// LeadMarker records a successful remote upsert on the local lead.
type LeadMarker interface {
	MarkInjected(ctx context.Context, leadID, crmLeadID string) error
}

// Sync consumes lead_upserted events and mirrors each lead into the property
// the inference picks. Running injection off the event hub keeps third-party
// I/O out of the capture path: a CRM outage can never fail a conversation.
type Sync struct {
	router *Router
	hub    *event.Hub
	leads  LeadMarker
	logger *slog.Logger

	cancel func()
	done   chan struct{}
}

// NewSync creates the CRM sync worker.
func NewSync(router *Router, hub *event.Hub, leads LeadMarker, logger *slog.Logger) *Sync {
	return &Sync{
		router: router,
		hub:    hub,
		leads:  leads,
		logger: logger.With(slog.String("service", "crm_sync")),
	}
}

// Start subscribes to lead upserts and processes them until Stop is called.
func (s *Sync) Start() {
	_, stream, cancel := s.hub.Subscribe(event.TypeLeadUpserted, event.DefaultBufferSize)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for e := range stream {
			s.handle(e)
		}
	}()
}

// Stop unsubscribes and waits for in-flight work to finish.
func (s *Sync) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sync) handle(e event.Event) {
	var l lead.QualifiedLead
	if err := json.Unmarshal(e.Data, &l); err != nil {
		s.logger.Error("decode lead event", slog.Any("error", err))
		return
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancelCtx()

	key := lead.DetermineProperty(l, s.router.FallbackProperty())
	result := s.router.InjectLead(ctx, l, key)
	if !result.Success {
		s.logger.Warn("crm injection failed",
			slog.String("lead_id", l.ID),
			slog.String("property", key),
			slog.Any("errors", result.Errors))
		return
	}

	if err := s.leads.MarkInjected(ctx, l.ID, result.LeadID); err != nil {
		s.logger.Error("mark injected failed",
			slog.String("lead_id", l.ID),
			slog.Any("error", err))
		return
	}
	s.logger.Info("lead injected",
		slog.String("lead_id", l.ID),
		slog.String("property", key),
		slog.String("crm_lead_id", result.LeadID))
}
