package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninalabs/ninabot/internal/pipeline"
)

func postWidget(h *WidgetHandler, body string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/widget/messages", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	err := h.Message(e.NewContext(req, rec))
	return rec, err
}

func TestWidgetMessageReturnsReply(t *testing.T) {
	processor := &fakeProcessor{outcome: pipeline.Outcome{
		SessionID: "sess-1",
		Reply:     "¡Hola! ¿Qué zona te interesa?",
	}}
	h := NewWidgetHandler(slog.Default(), processor)

	rec, err := postWidget(h, `{"visitor_id":"v1","name":"Pedro","message":"hola"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp widgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "v1", resp.VisitorID)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "¡Hola! ¿Qué zona te interesa?", resp.Reply)

	env := processor.last()
	assert.Equal(t, "web:v1", env.Sender)
	assert.Equal(t, "web", env.Platform)
	assert.Equal(t, "Pedro", env.DisplayName)
}

func TestWidgetMessageGeneratesVisitorID(t *testing.T) {
	processor := &fakeProcessor{outcome: pipeline.Outcome{Reply: "hola"}}
	h := NewWidgetHandler(slog.Default(), processor)

	rec, err := postWidget(h, `{"message":"hola"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp widgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.VisitorID)
	assert.True(t, strings.HasPrefix(processor.last().Sender, "web:"))
}

func TestWidgetMessageRequiresText(t *testing.T) {
	h := NewWidgetHandler(slog.Default(), &fakeProcessor{})

	_, err := postWidget(h, `{"visitor_id":"v1","message":"  "}`)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}
