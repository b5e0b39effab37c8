// Package api is the HTTP boundary: request parsing, route wiring, and
// the optimizer contract. Scheduling decisions live in internal/schedule;
// this layer only fetches snapshots, runs the core, and commits results.
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/time/rate"

	"tempora/internal/schedule"
	"tempora/internal/storage"
	"tempora/pkg/logx"
)

// Config wraps the knobs that impact runtime behavior.
type Config struct {
	Addr string
	// OptimizePerMinute bounds how many optimization runs the server
	// accepts per minute; 0 picks a sane default.
	OptimizePerMinute int
}

// Server exposes the Fiber application.
type Server struct {
	app   *fiber.App
	store storage.Store
	log   logx.Logger
	cfg   Config

	// optMu serializes optimization runs: a second run over the same data
	// before the first commits would read a stale snapshot and could
	// double-book.
	optMu      sync.Mutex
	optLimiter *rate.Limiter
}

// NewServer wires handlers and middleware.
func NewServer(cfg Config, store storage.Store, log logx.Logger) *Server {
	if cfg.OptimizePerMinute <= 0 {
		cfg.OptimizePerMinute = 10
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		ErrorHandler:          errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(requestLogger(log))

	srv := &Server{
		app:        app,
		store:      store,
		log:        log,
		cfg:        cfg,
		optLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.OptimizePerMinute)), cfg.OptimizePerMinute),
	}
	srv.registerRoutes()
	return srv
}

// Run starts listening for HTTP traffic until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()
	s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

// App exposes the underlying fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Get("/events", s.handleListEvents)
	s.app.Post("/events", s.handleCreateEvent)
	s.app.Post("/validate-event", s.handleValidateEvent)
	s.app.Put("/events/:id", s.handleUpdateEvent)
	s.app.Delete("/events/:id", s.handleDeleteEvent)
	s.app.Post("/events/:id/lock", s.handleLockEvent)
	s.app.Delete("/templates/:id", s.handleDeleteTemplate)

	s.app.Get("/preferences", s.handleGetPreferences)
	s.app.Put("/preferences", s.handlePutPreferences)

	s.app.Post("/optimize", s.handleOptimize)
	s.app.Get("/export.ics", s.handleExportICS)
}

func requestLogger(log logx.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if !log.Enabled(logx.LevelDebug) {
			return err
		}
		log.Debug("http request",
			logx.String("method", c.Method()),
			logx.String("path", c.Path()),
			logx.Int("status", c.Response().StatusCode()),
			logx.Duration("took", time.Since(start)))
		return err
	}
}

// errorHandler maps domain errors onto HTTP statuses so handlers can just
// return them.
func errorHandler(log logx.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		var ve *schedule.ValidationError
		var nse *schedule.NoSlotError

		switch {
		case errors.As(err, &fe):
			status = fe.Code
		case errors.As(err, &ve):
			status = fiber.StatusBadRequest
		case errors.As(err, &nse):
			status = fiber.StatusConflict
		case errors.Is(err, storage.ErrNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, storage.ErrConflict):
			status = fiber.StatusConflict
		}
		if status >= 500 {
			log.Error("request failed",
				logx.String("path", c.Path()),
				logx.Err(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
}
