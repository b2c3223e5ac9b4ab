package crm

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninalabs/ninabot/internal/event"
	"github.com/ninalabs/ninabot/internal/lead"
)

type fakeMarker struct {
	mu       sync.Mutex
	injected map[string]string
}

func (f *fakeMarker) MarkInjected(_ context.Context, leadID, crmLeadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected[leadID] = crmLeadID
	return nil
}

func (f *fakeMarker) get(leadID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.injected[leadID]
	return id, ok
}

func TestSyncInjectsOnLeadUpserted(t *testing.T) {
	api := &fakeAPI{existing: map[string]string{}}
	router := NewRouter(api, testCRMConfig(), slog.Default())
	hub := event.NewHub()
	marker := &fakeMarker{injected: map[string]string{}}

	worker := NewSync(router, hub, marker, slog.Default())
	worker.Start()
	defer worker.Stop()

	l := lead.QualifiedLead{ID: "lead-1", Phone: "+5215512345678", CityOfInterest: "Tulum"}
	data, err := json.Marshal(l)
	require.NoError(t, err)
	hub.Publish(event.Event{Type: event.TypeLeadUpserted, Phone: l.Phone, Data: data})

	require.Eventually(t, func() bool {
		_, ok := marker.get("lead-1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	id, _ := marker.get("lead-1")
	assert.Equal(t, "remote-1", id)
	// Tulum routes to the yucatan property.
	require.Len(t, api.created, 1)
	assert.Equal(t, 24610, api.created[0].ProjectID)
}
