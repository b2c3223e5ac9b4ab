package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ninalabs/ninabot/internal/pipeline"
)

// WidgetHandler serves the web chat widget. Visitors have no stable phone
// identifier, so each browser session carries a generated visitor id.
type WidgetHandler struct {
	processor Processor
	logger    *slog.Logger
}

// NewWidgetHandler creates a WidgetHandler.
func NewWidgetHandler(log *slog.Logger, processor Processor) *WidgetHandler {
	return &WidgetHandler{
		processor: processor,
		logger:    log.With(slog.String("handler", "widget")),
	}
}

// Register mounts the widget routes.
func (h *WidgetHandler) Register(e *echo.Echo) {
	e.POST("/widget/messages", h.Message)
}

type widgetRequest struct {
	VisitorID string `json:"visitor_id"`
	Name      string `json:"name"`
	Message   string `json:"message"`
}

type widgetResponse struct {
	VisitorID string `json:"visitor_id"`
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// Message handles one widget turn synchronously: the browser is waiting for
// the reply, unlike the provider webhook.
func (h *WidgetHandler) Message(c echo.Context) error {
	var req widgetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.VisitorID == "" {
		req.VisitorID = uuid.NewString()
	}

	out, err := h.processor.Process(c.Request().Context(), pipeline.Envelope{
		Sender:      "web:" + req.VisitorID,
		Platform:    "web",
		DisplayName: req.Name,
		Body:        req.Message,
	})
	if err != nil {
		h.logger.Error("widget processing failed",
			slog.String("visitor_id", req.VisitorID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
	}

	return c.JSON(http.StatusOK, widgetResponse{
		VisitorID: req.VisitorID,
		SessionID: out.SessionID,
		Reply:     out.Reply,
	})
}
