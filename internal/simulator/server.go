package simulator

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sandevgo/engage"
	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/pkg/log"
)

// Server exposes the extension over HTTP so decision payloads, fetch requests,
// and application events can be driven with curl. It implements srv.Service.
type Server struct {
	ctx  context.Context
	addr string
	e    *echo.Echo
	ext  *engage.Extension
	bus  core.Bus
	ui   *ConsoleUI
}

func NewServer(ctx context.Context, addr string, ext *engage.Extension, bus core.Bus, ui *ConsoleUI) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{ctx: ctx, addr: addr, e: e, ext: ext, bus: bus, ui: ui}

	e.POST("/v1/decisions", s.postDecisions)
	e.POST("/v1/fetch", s.postFetch)
	e.POST("/v1/events", s.postEvent)
	e.POST("/v1/tap", s.postTap)
	e.POST("/v1/cache/clear", s.postClearCache)
	e.GET("/v1/propositions", s.getPropositions)
	e.GET("/v1/diagnostics", s.getDiagnostics)

	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.addr).Msg("simulator listening")
	if err := s.e.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

type decisionsRequest struct {
	RequestEventID string `json:"requestEventId"`
	Payload        []any  `json:"payload"`
}

// postDecisions injects a personalization payload the way the edge would
// deliver it.
// POST /v1/decisions
func (s *Server) postDecisions(c echo.Context) error {
	var req decisionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	s.bus.Dispatch(core.NewDecisionEvent(req.RequestEventID, req.Payload))
	return c.JSON(http.StatusAccepted, map[string]any{"ok": true})
}

type fetchRequest struct {
	Surfaces []string `json:"surfaces"`
}

// postFetch triggers an outbound proposition fetch for the given surface
// paths; an empty list requests the base app surface.
// POST /v1/fetch
func (s *Server) postFetch(c echo.Context) error {
	var req fetchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	s.ext.RequestMessages(s.ctx, req.Surfaces)
	return c.JSON(http.StatusAccepted, map[string]any{"ok": true})
}

type eventRequest struct {
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Data   map[string]any `json:"data"`
}

// postEvent runs one application event through the rules engine, realizing
// matched consequences into shown messages.
// POST /v1/events
func (s *Server) postEvent(c echo.Context) error {
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Type == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "type is required"})
	}

	s.ext.HandleEvent(s.ctx, core.Event{Type: req.Type, Source: req.Source, Data: req.Data})
	return c.JSON(http.StatusOK, map[string]any{
		"ok":               true,
		"messageDisplayed": s.ext.IsMessageDisplayed(),
	})
}

type tapRequest struct {
	URL string `json:"url"`
}

// postTap simulates the user tapping a link inside the displayed message.
// POST /v1/tap
func (s *Server) postTap(c echo.Context) error {
	var req tapRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if !s.ext.IsMessageDisplayed() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "no message displayed"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"intercepted": s.ui.Tap(req.URL),
	})
}

// POST /v1/cache/clear
func (s *Server) postClearCache(c echo.Context) error {
	s.ext.ClearCachedData(s.ctx)
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// GET /v1/propositions?surface=app://acme/promos
func (s *Server) getPropositions(c echo.Context) error {
	surfaceURI := c.QueryParam("surface")
	if surfaceURI == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "surface query parameter is required"})
	}

	props := s.ext.PropositionsForSurface(s.ctx, surfaceURI)
	return c.JSON(http.StatusOK, map[string]any{
		"surface":      surfaceURI,
		"propositions": props,
	})
}

// GET /v1/diagnostics
func (s *Server) getDiagnostics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"sdk":                core.SDKName,
		"version":            core.SDKVersion,
		"loadedRules":        s.ext.LoadedRuleCount(),
		"propositionsCached": s.ext.ArePropositionsCached(s.ctx),
		"messageDisplayed":   s.ext.IsMessageDisplayed(),
	})
}
