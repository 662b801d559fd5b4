package server

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/chimelab/chime/internal/config"
	"github.com/chimelab/chime/internal/coordinator"
	"github.com/chimelab/chime/internal/wakesignal"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ServerOptions contains the dependencies for creating a new Server.
type ServerOptions struct {
	Config      *config.Config
	Coordinator *coordinator.Manager
	Bridge      *wakesignal.Bridge
	Logger      *slog.Logger
	Version     string
}

// Server is the HTTP surface of the alarm service. The mobile client's
// screens and the platform's native adapters are its only consumers.
type Server struct {
	app     *fiber.App
	config  *config.Config
	coord   *coordinator.Manager
	bridge  *wakesignal.Bridge
	log     *slog.Logger
	version string
}

// New creates a Server with all routes registered.
func New(opts ServerOptions) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "chime",
		ReadTimeout:  opts.Config.Server.HTTPServerTimeout,
		WriteTimeout: opts.Config.Server.HTTPServerTimeout,
	})
	app.Use(recover.New())

	s := &Server{
		app:     app,
		config:  opts.Config,
		coord:   opts.Coordinator,
		bridge:  opts.Bridge,
		log:     opts.Logger.With("component", "server"),
		version: opts.Version,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)

	api := s.app.Group("/api/v1")
	api.Get("/meta", s.handleGetMeta)

	api.Get("/alarms", s.handleListAlarms)
	api.Post("/alarms", s.handleCreateAlarm)
	api.Get("/alarms/:id", s.handleGetAlarm)
	api.Put("/alarms/:id", s.handleUpdateAlarm)
	api.Delete("/alarms/:id", s.handleDeleteAlarm)
	api.Post("/alarms/:id/toggle", s.handleToggleAlarm)

	api.Post("/signals", s.handlePostSignal)
	api.Get("/ringing", s.handleListRinging)

	api.Get("/permission", s.handleGetPermission)
	api.Post("/permission/request", s.handleRequestPermission)
}

// Start begins serving HTTP requests. It blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.config.Server.ListenAddr)
	return s.app.Listen(s.config.Server.ListenAddr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	var buf bytes.Buffer
	metrics.WritePrometheus(&buf, true)
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.Send(buf.Bytes())
}

// MetaResponse represents the server metadata response.
type MetaResponse struct {
	Version           string `json:"version"`
	HTTPServerTimeout string `json:"http_server_timeout"`
	SnoozeDuration    string `json:"snooze_duration"`
}

func (s *Server) handleGetMeta(c *fiber.Ctx) error {
	meta := MetaResponse{
		Version:           s.version,
		HTTPServerTimeout: s.config.Server.HTTPServerTimeout.String(),
		SnoozeDuration:    s.config.Alarm.SnoozeDuration.String(),
	}
	return SendSuccess(c, fiber.StatusOK, meta)
}
