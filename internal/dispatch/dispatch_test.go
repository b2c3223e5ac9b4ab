package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninalabs/ninabot/internal/ai"
	"github.com/ninalabs/ninabot/internal/catalog"
	"github.com/ninalabs/ninabot/internal/lead"
)

type sentMessage struct {
	To      string
	Body    string
	Media   string
	Caption string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{To: to, Body: body})
	return "SM1", nil
}

func (f *fakeSender) SendMedia(_ context.Context, to, mediaURL, caption string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{To: to, Media: mediaURL, Caption: caption})
	return "SM2", nil
}

func (f *fakeSender) SendLocation(_ context.Context, to string, _, _ float64, label string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{To: to, Body: label})
	return "SM3", nil
}

type fakeLeads struct {
	captured  []lead.Fields
	qualified []lead.Fields
	err       error
}

func (f *fakeLeads) CaptureInfo(_ context.Context, fields lead.Fields) (lead.QualifiedLead, error) {
	if f.err != nil {
		return lead.QualifiedLead{}, f.err
	}
	f.captured = append(f.captured, fields)
	return lead.QualifiedLead{Rating: lead.RatingInitial}, nil
}

func (f *fakeLeads) QualifyLead(_ context.Context, fields lead.Fields) (lead.QualifiedLead, error) {
	if f.err != nil {
		return lead.QualifiedLead{}, f.err
	}
	f.qualified = append(f.qualified, fields)
	return lead.QualifiedLead{Rating: lead.RatingHot}, nil
}

func newTestDispatcher(t *testing.T, sender *fakeSender, leads *fakeLeads) *Dispatcher {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	return New(cat, sender, leads, "+5213312345678", slog.Default())
}

func action(name, args string) ai.Action {
	return ai.Action{Name: name, Args: json.RawMessage(args)}
}

func TestExecuteSendMedia(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(t, sender, &fakeLeads{})

	res := d.Execute(context.Background(), Request{
		Sender: "whatsapp:+5215550001111",
		Action: action("send_media", `{"category":"interior","subfilters":["cocina"]}`),
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "SM2", res.DeliveryID)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Media, "interior_cocina")
}

func TestExecuteUnknownAction(t *testing.T) {
	d := newTestDispatcher(t, &fakeSender{}, &fakeLeads{})

	res := d.Execute(context.Background(), Request{
		Sender: "whatsapp:+5215550001111",
		Action: action("reboot_universe", `{}`),
	})

	assert.False(t, res.Success)
	assert.Equal(t, "unknown action", res.Error)
	assert.Equal(t, "reboot_universe", res.Action)
}

func TestExecuteRepairsFencedArguments(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(t, sender, &fakeLeads{})

	res := d.Execute(context.Background(), Request{
		Sender: "whatsapp:+5215550001111",
		Action: action("send_brochure", "```json\n{\"property\":\"yucatan\"}\n```"),
	})

	require.True(t, res.Success, res.Error)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Media, "yucatan")
}

func TestExecuteGarbageArgumentsBecomeEmptyObject(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(t, sender, &fakeLeads{})

	// No recoverable JSON at all: send_brochure with empty args still works
	// because the general brochure is the fallback.
	res := d.Execute(context.Background(), Request{
		Sender: "whatsapp:+5215550001111",
		Action: action("send_brochure", "totally not json"),
	})

	require.True(t, res.Success, res.Error)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Media, "general")
}

func TestCaptureInfoDefaultsIdentityFromConversation(t *testing.T) {
	leads := &fakeLeads{}
	d := newTestDispatcher(t, &fakeSender{}, leads)

	res := d.Execute(context.Background(), Request{
		Sender:      "whatsapp:+5215550001111",
		DisplayName: "Laura",
		Action:      action("capture_customer_info", `{"ciudad_interes":"Mérida"}`),
	})

	require.True(t, res.Success, res.Error)
	require.Len(t, leads.captured, 1)
	assert.Equal(t, "whatsapp:+5215550001111", leads.captured[0].Phone)
	assert.Equal(t, "Laura", leads.captured[0].Name)
	assert.Equal(t, "Mérida", leads.captured[0].CityOfInterest)
}

func TestQualifyLeadReportsRating(t *testing.T) {
	leads := &fakeLeads{}
	d := newTestDispatcher(t, &fakeSender{}, leads)

	res := d.Execute(context.Background(), Request{
		Sender: "whatsapp:+5215550001111",
		Action: action("qualify_lead", `{"motivo":"visita","nombre":"Pedro"}`),
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "lead qualified as hot", res.Message)
	require.Len(t, leads.qualified, 1)
	assert.Equal(t, "visita", leads.qualified[0].Motive)
}

func TestSendFailureIsReportedNotPropagated(t *testing.T) {
	sender := &fakeSender{err: errors.New("twilio down")}
	d := newTestDispatcher(t, sender, &fakeLeads{})

	res := d.Execute(context.Background(), Request{
		Sender: "whatsapp:+5215550001111",
		Action: action("send_media", `{"category":"exterior"}`),
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "twilio down")
}

func TestExecuteRecoversPanics(t *testing.T) {
	// A nil catalog makes send_media dereference nil; the result must still
	// come back as data.
	d := New(nil, &fakeSender{}, &fakeLeads{}, "", slog.Default())

	res := d.Execute(context.Background(), Request{
		Sender: "whatsapp:+5215550001111",
		Action: action("send_media", `{"category":"exterior"}`),
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "internal error")
}

func TestExecuteAllKeepsGoingAfterFailures(t *testing.T) {
	leads := &fakeLeads{}
	sender := &fakeSender{}
	d := newTestDispatcher(t, sender, leads)

	results := d.ExecuteAll(context.Background(), "whatsapp:+5215550001111", "Laura", []ai.Action{
		action("bogus", `{}`),
		action("qualify_lead", `{"motivo":"llamada"}`),
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	require.Len(t, leads.qualified, 1)
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid passthrough", `{"a":1}`, `{"a":1}`},
		{"fenced object", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Sure! Here you go: {"a":1} hope it helps`, `{"a":1}`},
		{"array", `the list is [1,2,3]`, `[1,2,3]`},
		{"brace inside string", `x {"msg":"uso { llaves }"} y`, `{"msg":"uso { llaves }"}`},
		{"empty", ``, `{}`},
		{"hopeless", `not json at all`, `{}`},
		{"truncated", `{"a": 1, "b":`, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(repairJSON(json.RawMessage(tt.in))))
		})
	}
}
