// Package dispatch executes the side-effect actions requested by the AI
// orchestrator. Every failure is returned as data: a broken tool call must
// never take down message processing.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ninalabs/ninabot/internal/ai"
	"github.com/ninalabs/ninabot/internal/catalog"
	"github.com/ninalabs/ninabot/internal/lead"
	"github.com/ninalabs/ninabot/internal/messaging"
)

// Request is one action to execute on behalf of a conversation.
type Request struct {
	Sender      string
	DisplayName string
	Action      ai.Action
}

// Result reports how an action went. Error is a human-readable cause when
// Success is false; DeliveryID is set when the action sent a message.
type Result struct {
	Action     string `json:"action"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// LeadRecorder is the slice of the lead service the dispatcher needs.
type LeadRecorder interface {
	CaptureInfo(ctx context.Context, f lead.Fields) (lead.QualifiedLead, error)
	QualifyLead(ctx context.Context, f lead.Fields) (lead.QualifiedLead, error)
}

// Dispatcher routes actions to their handlers.
type Dispatcher struct {
	catalog     *catalog.Catalog
	sender      messaging.Sender
	leads       LeadRecorder
	salesNumber string
	logger      *slog.Logger
}

// New creates a Dispatcher.
func New(cat *catalog.Catalog, sender messaging.Sender, leads LeadRecorder, salesNumber string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		catalog:     cat,
		sender:      sender,
		leads:       leads,
		salesNumber: salesNumber,
		logger:      logger.With(slog.String("service", "dispatch")),
	}
}

// Execute runs one action. Panics in handlers are recovered and reported as a
// failed result.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (res Result) {
	res.Action = req.Action.Name
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("action handler panicked",
				slog.String("action", req.Action.Name), slog.Any("panic", r))
			res = Result{Action: req.Action.Name, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	args := repairJSON(req.Action.Args)

	switch req.Action.Name {
	case "send_media":
		return d.sendMedia(ctx, req, args)
	case "send_location":
		return d.sendLocation(ctx, req, args)
	case "send_brochure":
		return d.sendBrochure(ctx, req, args)
	case "forward_media":
		return d.forwardMedia(ctx, req, args)
	case "capture_customer_info":
		return d.captureInfo(ctx, req, args)
	case "qualify_lead":
		return d.qualifyLead(ctx, req, args)
	case "provide_contact_info":
		return d.contactInfo(ctx, req, args)
	default:
		d.logger.Warn("unknown action requested", slog.String("action", req.Action.Name))
		return Result{Action: req.Action.Name, Error: "unknown action"}
	}
}

// ExecuteAll runs every action in order and returns the per-action results.
func (d *Dispatcher) ExecuteAll(ctx context.Context, sender, displayName string, actions []ai.Action) []Result {
	results := make([]Result, 0, len(actions))
	for _, a := range actions {
		res := d.Execute(ctx, Request{Sender: sender, DisplayName: displayName, Action: a})
		if !res.Success {
			d.logger.Warn("action failed",
				slog.String("action", res.Action), slog.String("error", res.Error))
		}
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) sendMedia(ctx context.Context, req Request, raw []byte) Result {
	var args struct {
		Category   string   `json:"category"`
		Subfilters []string `json:"subfilters"`
	}
	if res, ok := decodeArgs(req.Action.Name, raw, &args); !ok {
		return res
	}
	photo, ok := d.catalog.Lookup(args.Category, args.Subfilters...)
	if !ok {
		return fail(req, "no photos for category %q", args.Category)
	}
	sid, err := d.sender.SendMedia(ctx, req.Sender, photo.URL, photo.Caption)
	if err != nil {
		return fail(req, "send media: %v", err)
	}
	return succeed(req, sid, "photo sent")
}

func (d *Dispatcher) sendLocation(ctx context.Context, req Request, raw []byte) Result {
	var args struct {
		Property string `json:"property"`
	}
	if res, ok := decodeArgs(req.Action.Name, raw, &args); !ok {
		return res
	}
	loc, ok := propertyLocations[strings.ToLower(args.Property)]
	if !ok {
		return fail(req, "no location for property %q", args.Property)
	}
	sid, err := d.sender.SendLocation(ctx, req.Sender, loc.Lat, loc.Lon, loc.Label)
	if err != nil {
		return fail(req, "send location: %v", err)
	}
	return succeed(req, sid, "location sent")
}

func (d *Dispatcher) sendBrochure(ctx context.Context, req Request, raw []byte) Result {
	var args struct {
		Property string `json:"property"`
	}
	if res, ok := decodeArgs(req.Action.Name, raw, &args); !ok {
		return res
	}
	brochure, ok := d.catalog.Brochure(args.Property)
	if !ok {
		return fail(req, "no brochure available")
	}
	sid, err := d.sender.SendMedia(ctx, req.Sender, brochure.URL, brochure.Caption)
	if err != nil {
		return fail(req, "send brochure: %v", err)
	}
	return succeed(req, sid, "brochure sent")
}

func (d *Dispatcher) forwardMedia(ctx context.Context, req Request, raw []byte) Result {
	var args struct {
		MediaURL string `json:"media_url"`
		Note     string `json:"note"`
	}
	if res, ok := decodeArgs(req.Action.Name, raw, &args); !ok {
		return res
	}
	if args.MediaURL == "" {
		return fail(req, "media_url is required")
	}
	if d.salesNumber == "" {
		return fail(req, "sales forward number not configured")
	}
	caption := "Archivo reenviado de " + displayOrSender(req)
	if args.Note != "" {
		caption += ": " + args.Note
	}
	sid, err := d.sender.SendMedia(ctx, d.salesNumber, args.MediaURL, caption)
	if err != nil {
		return fail(req, "forward media: %v", err)
	}
	return succeed(req, sid, "media forwarded to sales")
}

func (d *Dispatcher) captureInfo(ctx context.Context, req Request, raw []byte) Result {
	var f lead.Fields
	if res, ok := decodeArgs(req.Action.Name, raw, &f); !ok {
		return res
	}
	fillIdentity(&f, req)
	if _, err := d.leads.CaptureInfo(ctx, f); err != nil {
		return fail(req, "capture info: %v", err)
	}
	return succeed(req, "", "customer info saved")
}

func (d *Dispatcher) qualifyLead(ctx context.Context, req Request, raw []byte) Result {
	var f lead.Fields
	if res, ok := decodeArgs(req.Action.Name, raw, &f); !ok {
		return res
	}
	fillIdentity(&f, req)
	l, err := d.leads.QualifyLead(ctx, f)
	if err != nil {
		return fail(req, "qualify lead: %v", err)
	}
	return succeed(req, "", "lead qualified as "+l.Rating.String())
}

func (d *Dispatcher) contactInfo(ctx context.Context, req Request, raw []byte) Result {
	var args struct {
		Property string `json:"property"`
	}
	if res, ok := decodeArgs(req.Action.Name, raw, &args); !ok {
		return res
	}
	card, ok := contactCards[strings.ToLower(args.Property)]
	if !ok {
		card = contactCards["general"]
	}
	sid, err := d.sender.SendText(ctx, req.Sender, card)
	if err != nil {
		return fail(req, "send contact info: %v", err)
	}
	return succeed(req, sid, "contact info sent")
}

func fail(req Request, format string, a ...any) Result {
	return Result{Action: req.Action.Name, Error: fmt.Sprintf(format, a...)}
}

func succeed(req Request, deliveryID, message string) Result {
	return Result{Action: req.Action.Name, Success: true, Message: message, DeliveryID: deliveryID}
}

// fillIdentity defaults missing identity fields from the conversation. Web
// visitor ids are not phone numbers and must never land in the phone field.
func fillIdentity(f *lead.Fields, req Request) {
	if f.Name == "" {
		f.Name = req.DisplayName
	}
	if strings.HasPrefix(req.Sender, "web:") {
		if f.Source == "" {
			f.Source = lead.SourceWeb
		}
		return
	}
	if f.Phone == "" {
		f.Phone = req.Sender
	}
}

func displayOrSender(req Request) string {
	if req.DisplayName != "" {
		return req.DisplayName
	}
	return req.Sender
}

type location struct {
	Lat, Lon float64
	Label    string
}

// Sales-office coordinates per property.
var propertyLocations = map[string]location{
	"residencias": {Lat: 20.659698, Lon: -103.349609, Label: "Oficina de ventas Residencias, Guadalajara"},
	"yucatan":     {Lat: 20.967370, Lon: -89.592586, Label: "Residencias Yucatán, Mérida"},
	"costalegre":  {Lat: 19.551832, Lon: -105.068047, Label: "Residencias Costalegre"},
	"valle_de_guadalupe": {
		Lat: 32.094913, Lon: -116.566704,
		Label: "Residencias Valle de Guadalupe",
	},
}

var contactCards = map[string]string{
	"general": "Oficina de ventas Residencias\nTel: +52 33 1234 5678\nEmail: ventas@residencias.mx\nHorario: lunes a sábado, 9:00 a 19:00",
	"yucatan": "Oficina de ventas Yucatán\nTel: +52 999 123 4567\nEmail: yucatan@residencias.mx\nHorario: lunes a sábado, 9:00 a 19:00",
}
