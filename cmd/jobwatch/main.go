package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobwatch/internal/ats"
	"jobwatch/internal/config"
	"jobwatch/internal/httpclient"
	"jobwatch/internal/render"
	"jobwatch/internal/scheduler"
	"jobwatch/internal/scrape"
	"jobwatch/internal/server"
	"jobwatch/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: scheduler|api|all")
	once := flag.Bool("once", false, "run a single scheduler pass and exit")
	dryRun := flag.Bool("dry-run", false, "scrape without persisting")
	pagesDir := flag.String("pages-dir", "", "override the pages directory")
	flag.Parse()

	cfg := config.Load(*configPath)
	if *once {
		cfg.Scheduler.Once = true
	}
	if *dryRun {
		cfg.Scheduler.DryRun = true
	}
	if *pagesDir != "" {
		cfg.Scheduler.PagesDir = *pagesDir
	}

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	st := store.New(store.Options{Dir: cfg.Scheduler.PagesDir, Logger: logger})

	var renderer *render.Renderer
	if cfg.Renderer.Enabled {
		renderer = render.New(render.Options{
			ControlURL: cfg.Renderer.ControlURL,
			Timeout:    time.Duration(cfg.Renderer.TimeoutMs) * time.Millisecond,
			Logger:     logger,
		})
		defer renderer.Close()
	}

	httpClient := httpclient.New(httpclient.Options{
		Timeout:   time.Duration(cfg.HTTP.TimeoutMs) * time.Millisecond,
		HostRPS:   cfg.HTTP.HostRPS,
		HostBurst: cfg.HTTP.HostBurst,
	})

	registry := ats.NewRegistry(ats.Deps{
		HTTP:     httpClient,
		Renderer: renderer,
		Log:      logger,
	})
	engine := scrape.New(scrape.Config{
		HTTP:          httpClient,
		Renderer:      renderer,
		Registry:      registry,
		Logger:        logger,
		RespectRobots: cfg.Robots.Respect,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(scheduler.FromConfig(cfg), st, engine, logger)

	switch *role {
	case "scheduler":
		if err := sched.Run(rootCtx); err != nil && rootCtx.Err() == nil {
			log.Fatalf("scheduler failed: %v", err)
		}
	case "api":
		s := server.NewServer(cfg, st, renderer, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case "all":
		go func() {
			if err := sched.Run(rootCtx); err != nil && rootCtx.Err() == nil {
				logger.Error("scheduler stopped", "error", err)
			}
		}()
		if cfg.Server.Enabled {
			s := server.NewServer(cfg, st, renderer, logger)
			if err := s.Listen(); err != nil {
				log.Fatalf("server failed: %v", err)
			}
		} else {
			<-rootCtx.Done()
		}
	default:
		log.Fatalf("invalid role: %s (expected scheduler|api|all)", *role)
	}
}
