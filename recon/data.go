package recon

import (
	"context"
	"errors"

	"go-recon/models"
)

const (
	// MaxConcurrency is the per-scan cap on probes in flight.
	MaxConcurrency = 50
	// MaxLimit is the largest accepted host limit for a scan.
	MaxLimit = 500
)

var (
	// ErrInvalidLimit is returned for a scan limit outside [1, MaxLimit].
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidSettings is returned when settings cannot be applied.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Discoverer finds candidate hostnames for a validated domain.
type Discoverer interface {
	Discover(ctx context.Context, domain string) map[string]struct{}
}

// Prober checks a single host. It never fails.
type Prober interface {
	Probe(ctx context.Context, host string) models.ProbeResult
}

// SettingsStore persists the runtime settings.
type SettingsStore interface {
	FetchSettings() (models.Settings, bool, error)
	UpdateSettings(models.Settings) error
}

// DefaultSettings returns the settings used when none were saved.
func DefaultSettings() models.Settings {
	return models.Settings{Concurrency: MaxConcurrency}
}
