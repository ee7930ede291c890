package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/calliepeck/cubby/internal/coordinator"
	"github.com/calliepeck/cubby/internal/dailyconnect"
	"github.com/calliepeck/cubby/internal/model"
	ws "github.com/calliepeck/cubby/internal/websocket"
)

// Provider is the slice of the coordinator the HTTP layer reads from.
type Provider interface {
	Snapshot() *model.Snapshot
	Diagnostics() coordinator.Diagnostics
	Photo(ctx context.Context, photoID string, size dailyconnect.PhotoSize) (*dailyconnect.Photo, error)
}

// Server exposes the bridge's read-only HTTP API plus the WebSocket push
// endpoint. It never talks to DailyConnect itself; everything it serves
// comes from the coordinator's published snapshot and photo cache.
type Server struct {
	echo     *echo.Echo
	provider Provider
	hub      *ws.Hub
	logger   *slog.Logger
}

// New builds the server and registers all routes.
func New(provider Provider, hub *ws.Hub, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		provider: provider,
		hub:      hub,
		logger:   logger,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	e.GET("/healthz", s.health)
	e.GET("/api/snapshot", s.snapshot)
	e.GET("/api/children", s.children)
	e.GET("/api/children/:id", s.child)
	e.GET("/api/calendar", s.calendar)
	e.GET("/api/photos/:id", s.photo)
	e.GET("/api/diagnostics", s.diagnostics)
	e.GET("/ws", echo.WrapHandler(ws.HandleWebSocket(hub, logger.With("component", "websocket"))))

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.echo.Server.ReadTimeout = 5 * time.Second
	s.echo.Server.WriteTimeout = 30 * time.Second
	s.echo.Server.IdleTimeout = 120 * time.Second
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	status := map[string]any{"status": "ok"}
	if snap := s.provider.Snapshot(); snap != nil {
		status["last_snapshot"] = snap.Taken
		status["degraded"] = snap.Degraded
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) snapshot(c echo.Context) error {
	snap := s.provider.Snapshot()
	if snap == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no snapshot published yet")
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) children(c echo.Context) error {
	snap := s.provider.Snapshot()
	if snap == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no snapshot published yet")
	}

	children := make([]model.Child, 0, len(snap.Children))
	for id, cs := range snap.Children {
		children = append(children, model.Child{ID: id, Name: cs.Name})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return c.JSON(http.StatusOK, children)
}

func (s *Server) child(c echo.Context) error {
	snap := s.provider.Snapshot()
	if snap == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no snapshot published yet")
	}

	cs := snap.Child(c.Param("id"))
	if cs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown child")
	}
	return c.JSON(http.StatusOK, cs)
}

func (s *Server) calendar(c echo.Context) error {
	snap := s.provider.Snapshot()
	if snap == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no snapshot published yet")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"events":      snap.Calendar,
		"unavailable": snap.CalendarUnavailable,
	})
}

func (s *Server) photo(c echo.Context) error {
	size := dailyconnect.PhotoFull
	if c.QueryParam("size") == "thumb" {
		size = dailyconnect.PhotoThumb
	}

	photo, err := s.provider.Photo(c.Request().Context(), c.Param("id"), size)
	if err != nil {
		if errors.Is(err, dailyconnect.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown photo")
		}
		s.logger.Warn("photo fetch", "id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "photo fetch failed")
	}

	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Blob(http.StatusOK, photo.ContentType, photo.Data)
}

func (s *Server) diagnostics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.provider.Diagnostics())
}
