// Package server exposes the collaborator HTTP API: board listing for
// read-only consumers, board creation, and the re-scrape request that
// clears a board's cadence markers. Everything else stays with the
// scheduler, which remains the only writer of scrape state.
package server

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"jobwatch/internal/config"
	"jobwatch/internal/metrics"
	"jobwatch/internal/render"
	"jobwatch/internal/store"
)

type Server struct {
	app      *fiber.App
	config   *config.Config
	store    *store.Store
	renderer *render.Renderer
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, st *store.Store, rend *render.Renderer, logger *slog.Logger) *Server {
	app := fiber.New()

	s := &Server{
		app:      app,
		config:   cfg,
		store:    st,
		renderer: rend,
		logger:   logger,
	}

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	app.Get("/healthz", s.healthHandler)

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	v1 := app.Group("/v1")
	v1.Get("/boards", s.listBoardsHandler)
	v1.Get("/boards/:slug", s.getBoardHandler)
	v1.Post("/boards", s.createBoardHandler)
	v1.Post("/boards/:slug/rescrape", s.rescrapeHandler)

	return s
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) healthHandler(c *fiber.Ctx) error {
	// Shallow health: process is up
	if c.Query("deep") != "true" {
		return c.JSON(fiber.Map{"status": "ok"})
	}

	pagesStatus := "ok"
	if err := probePagesDir(s.store.Dir()); err != nil {
		pagesStatus = "error"
	}

	rendererStatus := "disabled"
	if s.renderer != nil {
		// Report configuration only; pinging the browser from a health
		// probe would launch it as a side effect.
		rendererStatus = "enabled"
	}

	status := "ok"
	if pagesStatus != "ok" {
		status = "error"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"pages_dir": pagesStatus,
		"renderer":  rendererStatus,
	})
}

// probePagesDir verifies the pages directory is writable.
func probePagesDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".healthz-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
