package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ninalabs/ninabot/internal/blocklist"
	"github.com/ninalabs/ninabot/internal/crm"
	"github.com/ninalabs/ninabot/internal/lead"
	"github.com/ninalabs/ninabot/internal/session"
)

// OperatorHandler exposes the authenticated sales-operator API: session
// control, lead browsing, manual CRM injection and the blocklist.
type OperatorHandler struct {
	sessions  *session.Service
	leads     *lead.Service
	router    *crm.Router
	blocklist blocklist.Store
	logger    *slog.Logger
}

// NewOperatorHandler creates an OperatorHandler.
func NewOperatorHandler(log *slog.Logger, sessions *session.Service, leads *lead.Service, router *crm.Router, bl blocklist.Store) *OperatorHandler {
	return &OperatorHandler{
		sessions:  sessions,
		leads:     leads,
		router:    router,
		blocklist: bl,
		logger:    log.With(slog.String("handler", "operator")),
	}
}

// Register mounts the operator routes.
func (h *OperatorHandler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/sessions/:id/pause", h.PauseSession)
	api.POST("/sessions/:id/resume", h.ResumeSession)
	api.GET("/sessions/:id/messages", h.SessionMessages)
	api.GET("/leads", h.ListLeads)
	api.GET("/crm/properties", h.ListProperties)
	api.POST("/crm/inject", h.InjectLead)
	api.GET("/blocklist", h.ListBlocked)
	api.POST("/blocklist", h.BlockNumber)
	api.DELETE("/blocklist/:phone", h.UnblockNumber)
}

// PauseSession hands the conversation to a human: the bot records inbound
// messages but stops replying.
func (h *OperatorHandler) PauseSession(c echo.Context) error {
	return h.setPaused(c, true)
}

// ResumeSession returns the conversation to the bot.
func (h *OperatorHandler) ResumeSession(c echo.Context) error {
	return h.setPaused(c, false)
}

func (h *OperatorHandler) setPaused(c echo.Context, paused bool) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if err := h.sessions.SetPaused(c.Request().Context(), id, paused); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "is_paused": paused})
}

// SessionMessages returns the most recent messages of one session.
func (h *OperatorHandler) SessionMessages(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	limit := 50
	if s := strings.TrimSpace(c.QueryParam("limit")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	messages, err := h.sessions.History(c.Request().Context(), id, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": messages})
}

type leadItem struct {
	lead.QualifiedLead
	Rating string `json:"rating"`
}

// ListLeads returns qualified leads, optionally filtered by source and
// minimum rating.
func (h *OperatorHandler) ListLeads(c echo.Context) error {
	filter := lead.Filter{
		Source:    strings.TrimSpace(c.QueryParam("source")),
		MinRating: lead.ParseRating(strings.TrimSpace(c.QueryParam("min_rating"))),
	}
	leads, err := h.leads.List(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	items := make([]leadItem, len(leads))
	for i, l := range leads {
		items[i] = leadItem{QualifiedLead: l, Rating: l.Rating.String()}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

type propertyItem struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Configured  bool   `json:"configured"`
	Fallback    bool   `json:"fallback"`
}

// ListProperties returns the configured CRM properties and which of them can
// actually receive leads.
func (h *OperatorHandler) ListProperties(c echo.Context) error {
	props := h.router.Properties()
	items := make([]propertyItem, len(props))
	for i, p := range props {
		items[i] = propertyItem{
			Key:         p.Key,
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Configured:  p.APIKey != "",
			Fallback:    p.Key == h.router.FallbackProperty(),
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

type injectRequest struct {
	Phone      string   `json:"phone"`
	Name       string   `json:"name"`
	Properties []string `json:"properties"`
}

// InjectLead pushes one lead into the given properties manually, bypassing
// the automatic property inference.
func (h *OperatorHandler) InjectLead(c echo.Context) error {
	var req injectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Properties) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "properties are required")
	}

	l, err := h.leads.Find(c.Request().Context(), lead.Identity{Phone: req.Phone, Name: req.Name})
	if err != nil {
		if errors.Is(err, lead.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "lead not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	result := h.router.InjectLeadMulti(c.Request().Context(), l, req.Properties)
	if result.Success {
		for _, r := range result.PerProperty {
			if r.Success {
				if err := h.leads.MarkInjected(c.Request().Context(), l.ID, r.LeadID); err != nil {
					h.logger.Error("mark injected failed",
						slog.String("lead_id", l.ID), slog.Any("error", err))
				}
				break
			}
		}
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	return c.JSON(status, result)
}

// ListBlocked returns the blocked numbers.
func (h *OperatorHandler) ListBlocked(c echo.Context) error {
	entries, err := h.blocklist.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": entries})
}

type blockRequest struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

// BlockNumber adds a number to the blocklist.
func (h *OperatorHandler) BlockNumber(c echo.Context) error {
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	if err := h.blocklist.Add(c.Request().Context(), req.Phone, req.Reason); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// UnblockNumber removes a number from the blocklist.
func (h *OperatorHandler) UnblockNumber(c echo.Context) error {
	phone := strings.TrimSpace(c.Param("phone"))
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	if err := h.blocklist.Remove(c.Request().Context(), phone); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
