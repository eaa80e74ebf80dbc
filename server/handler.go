package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"go-recon/domain"
	"go-recon/jobs"
	"go-recon/models"
	"go-recon/recon"
)

// Handler defines an HTTP handler.
type Handler struct {
	recon Recon  // recon runs discovery and probing.
	jobs  Jobs   // jobs queues background scans.
	env   string // env is reported by /health.
}

// NewHandler returns a *Handler serving r and j.
func NewHandler(r Recon, j Jobs, env string) *Handler {
	return &Handler{recon: r, jobs: j, env: env}
}

// RootHandler defines the handler for the / endpoint.
func (h *Handler) RootHandler(ctx fiber.Ctx) error {
	return ctx.JSON(InfoResponse{Name: appName, Version: appVersion})
}

// HealthHandler defines the handler for the /health endpoint.
func (h *Handler) HealthHandler(ctx fiber.Ctx) error {
	return ctx.JSON(HealthResponse{OK: true, Env: h.env})
}

// SubdomainsHandler defines the handler for the /subdomains endpoint.
func (h *Handler) SubdomainsHandler(ctx fiber.Ctx) error {
	// Scans run to completion even if the client goes away.
	list, err := h.recon.ListSubdomains(context.Background(), ctx.Query("domain"))
	if err != nil {
		return h.fail(ctx, err)
	}

	etag := listETag(list.Subdomains)
	ctx.Set(fiber.HeaderETag, etag)
	if ctx.Get(fiber.HeaderIfNoneMatch) == etag {
		return ctx.SendStatus(fiber.StatusNotModified)
	}
	return ctx.Status(fiber.StatusOK).JSON(list)
}

// ScanHandler defines the handler for the /scan endpoint.
func (h *Handler) ScanHandler(ctx fiber.Ctx) error {
	// A bad domain is reported before a bad limit.
	d, err := domain.Validate(ctx.Query("domain"))
	if err != nil {
		return h.fail(ctx, err)
	}

	limit, err := parseLimit(ctx.Query("limit"))
	if err != nil {
		return h.fail(ctx, err)
	}

	report, err := h.recon.Scan(context.Background(), d, limit)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(report)
}

// CreateJobHandler defines the handler for POST /jobs.
func (h *Handler) CreateJobHandler(ctx fiber.Ctx) error {
	var data JobRequestAPI
	if err := ctx.Bind().Body(&data); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(response{Error: true, Detail: "Invalid data provided."})
	}

	job, err := h.jobs.Submit(data.Domain, data.Limit)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(job)
}

// JobHandler defines the handler for GET /jobs/:id.
func (h *Handler) JobHandler(ctx fiber.Ctx) error {
	job, err := h.jobs.Get(ctx.Params("id"))
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(job)
}

// JobStatsHandler defines the handler for GET /jobs.
func (h *Handler) JobStatsHandler(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(h.jobs.Stats())
}

// GetSettingsHandler defines the handler for GET /settings.
func (h *Handler) GetSettingsHandler(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(h.recon.Settings())
}

// SettingsHandler defines the handler for POST /settings.
func (h *Handler) SettingsHandler(ctx fiber.Ctx) error {
	var data models.Settings
	if err := ctx.Bind().Body(&data); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(response{Error: true, Detail: "Invalid data provided."})
	}

	if err := h.recon.ApplySettings(data); err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(h.recon.Settings())
}

// fail maps core errors to status codes. Anything unexpected is a 500 and
// its message is not exposed.
func (h *Handler) fail(ctx fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	detail := "Unexpected internal error occurred."

	switch {
	case errors.Is(err, domain.ErrInvalidDomain):
		status, detail = fiber.StatusBadRequest, "Invalid domain. Expected something like example.com"
	case errors.Is(err, recon.ErrInvalidLimit):
		status, detail = fiber.StatusUnprocessableEntity, fmt.Sprintf("limit must be an integer between 1 and %d", recon.MaxLimit)
	case errors.Is(err, recon.ErrInvalidSettings):
		status, detail = fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, jobs.ErrJobNotFound):
		status, detail = fiber.StatusNotFound, "Job not found."
	case errors.Is(err, jobs.ErrClosed):
		status, detail = fiber.StatusServiceUnavailable, "Server is shutting down."
	default:
		logrus.Errorf("%s %s: %v", ctx.Method(), ctx.Path(), err)
	}

	return ctx.Status(status).JSON(response{Error: true, Detail: detail})
}

// parseLimit reads the optional limit query parameter; empty means none.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("%w: %q", recon.ErrInvalidLimit, raw)
	}
	return limit, recon.ValidateLimit(limit)
}

// listETag fingerprints a sorted hostname list.
func listETag(hosts []string) string {
	return fmt.Sprintf(`"%016x"`, xxh3.HashString(strings.Join(hosts, "\n")))
}
