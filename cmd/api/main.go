package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/wayfinder/internal/adapters/http"
	"github.com/samirrijal/wayfinder/internal/adapters/mapbox"
	natsadapter "github.com/samirrijal/wayfinder/internal/adapters/nats"
	"github.com/samirrijal/wayfinder/internal/adapters/valkey"
	"github.com/samirrijal/wayfinder/internal/core/ports"
	"github.com/samirrijal/wayfinder/internal/core/usecases"
	"github.com/samirrijal/wayfinder/internal/pkg/config"
	"github.com/samirrijal/wayfinder/internal/pkg/logging"
	"github.com/samirrijal/wayfinder/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("wayfinder-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Mapbox
	mb := mapbox.NewClient(cfg.Mapbox.BaseURL, cfg.Mapbox.Token, time.Duration(cfg.Mapbox.Timeout)*time.Second)

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, geocoding results will not be cached", "error", err)
	} else {
		defer cache.Close()
	}

	// Use cases
	var searchCache ports.CacheService
	if cache != nil {
		searchCache = cache
	}
	searchSvc := usecases.NewSearchService(mb, searchCache)
	sessionDeps := usecases.SessionDeps{
		Locations: usecases.NewLocationService(cfg.Session.LocateTimeout()),
		Search:    searchSvc,
		Routes:    usecases.NewRouteService(mb, cfg.Session.RouteTimeout()),
	}

	deps := &http.Dependencies{
		Search:         searchSvc,
		Cache:          cache,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}

	// NATS carries session state and camera commands to the WebSocket relay.
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, live updates disabled", "error", err)
	} else {
		deps.NATS = natsConn
		pub, err := natsadapter.NewPublisher(natsConn)
		if err != nil {
			slog.Warn("nats publisher unavailable", "error", err)
		} else {
			defer pub.Close()
			sessionDeps.Observer = pub
			sessionDeps.Surface = pub
		}
		sub, err := natsadapter.NewSubscriber(natsConn)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			deps.Feed = sub
		}
	}

	sessions := usecases.NewSessionManager(sessionDeps, cfg.Session.IdleTTLDuration())
	deps.Sessions = sessions
	go sessions.Run(ctx, cfg.Session.SweepEvery())

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // 64 KB max request body
		AppName:      "Wayfinder API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	cancel()
	sessions.CloseAll(shutdownCtx)

	slog.Info("server stopped")
}
