package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/sirupsen/logrus"
	"go-recon/config"
	"go-recon/database"
	"go-recon/jobs"
	"go-recon/metrics"
	"go-recon/recon"
)

// New prepares the fiber app with every route.
func New(h *Handler, allowOrigin string) *fiber.App {
	app := fiber.New(fiber.Config{AppName: appName})
	app.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Origin", "Accept", "If-None-Match"},
		AllowOrigins: []string{allowOrigin},
	}))

	// Define routes
	app.Get("/", h.RootHandler)
	app.Get("/health", h.HealthHandler)
	app.Get("/subdomains", h.SubdomainsHandler)
	app.Get("/scan", h.ScanHandler)
	app.Get("/jobs", h.JobStatsHandler)
	app.Post("/jobs", h.CreateJobHandler)
	app.Get("/jobs/:id", h.JobHandler)
	app.Get("/settings", h.GetSettingsHandler)
	app.Post("/settings", h.SettingsHandler)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	return app
}

// Start wires the service from cfg and serves until ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config) error {
	// Initiate database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("couldn't create database: %w", err)
	}
	defer db.Close()

	manager := recon.FromConfig(cfg, db)
	queue := jobs.NewManager(manager, cfg.Jobs.MaxConcurrent, cfg.Jobs.TTL, 0)
	defer queue.Close()

	app := New(NewHandler(manager, queue, cfg.AppEnv), cfg.FrontendOrigin)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logrus.Infof("Recon API listening on %s", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	return nil
}
