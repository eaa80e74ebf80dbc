package recon

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go-recon/domain"
	"go-recon/fanout"
	"go-recon/metrics"
	"go-recon/models"
	"golang.org/x/time/rate"
)

// Manager runs the discovery and probing pipeline.
type Manager struct {
	discoverer Discoverer
	prober     Prober
	store      SettingsStore

	mu       sync.RWMutex
	settings models.Settings
}

// NewManager initializes a new *Manager. store may be nil, in which case
// settings live in memory only.
func NewManager(d Discoverer, p Prober, store SettingsStore) *Manager {
	return newManager(d, p, store, DefaultSettings())
}

func newManager(d Discoverer, p Prober, store SettingsStore, defaults models.Settings) *Manager {
	m := &Manager{
		discoverer: d,
		prober:     p,
		store:      store,
		settings:   defaults,
	}

	m.init()
	return m
}

// init initializes the Manager with last used settings.
func (m *Manager) init() {
	if m.store == nil {
		return
	}

	saved, ok, err := m.store.FetchSettings()
	if err != nil {
		logrus.Errorf("failed to load settings: %v", err)
		return
	}
	if !ok {
		return
	}
	if err := validateSettings(saved); err != nil {
		logrus.Warnf("ignoring saved settings: %v", err)
		return
	}
	m.settings = saved
}

// ListSubdomains validates rawDomain and returns its discovered hostnames
// sorted ascending. Nothing is probed.
func (m *Manager) ListSubdomains(ctx context.Context, rawDomain string) (*models.SubdomainList, error) {
	d, err := domain.Validate(rawDomain)
	if err != nil {
		return nil, err
	}
	metrics.GetMetrics().ScansTotal.WithLabelValues("subdomains").Inc()

	hosts := m.discover(ctx, d)
	return &models.SubdomainList{
		Domain:     d,
		Count:      len(hosts),
		Subdomains: hosts,
	}, nil
}

// Scan discovers the hostnames of rawDomain, keeps the first limit of them
// in lexical order (limit 0 keeps all) and probes every one. The report is
// built only after every probe has finished.
func (m *Manager) Scan(ctx context.Context, rawDomain string, limit int) (*models.ScanReport, error) {
	d, err := domain.Validate(rawDomain)
	if err != nil {
		return nil, err
	}
	if err := ValidateLimit(limit); err != nil {
		return nil, err
	}
	metrics.GetMetrics().ScansTotal.WithLabelValues("scan").Inc()

	hosts := m.discover(ctx, d)
	if limit > 0 && len(hosts) > limit {
		hosts = hosts[:limit]
	}

	settings := m.Settings()
	limiter := newLimiter(settings.ProbeRate)

	start := time.Now()
	results := fanout.Run(ctx, hosts, settings.Concurrency, func(ctx context.Context, host string) models.ProbeResult {
		if err := limiter.Wait(ctx); err != nil {
			logrus.WithField("host", host).Debugf("probe pacing interrupted: %v", err)
		}
		return m.prober.Probe(ctx, host)
	})

	report := &models.ScanReport{
		Domain:  d,
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Reachable {
			report.Alive++
		}
	}

	logrus.WithField("domain", d).Infof("scan finished: %d/%d alive in %v", report.Alive, report.Total, time.Since(start))
	return report, nil
}

// discover returns the sorted hostnames of a validated domain.
func (m *Manager) discover(ctx context.Context, d string) []string {
	set := m.discoverer.Discover(ctx, d)
	hosts := make([]string, 0, len(set))
	for h := range set {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Settings returns the settings applied to new scans.
func (m *Manager) Settings() models.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// ApplySettings validates and stores settings. Scans already running keep
// the settings they started with.
func (m *Manager) ApplySettings(settings models.Settings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}

	if m.store != nil {
		if err := m.store.UpdateSettings(settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	m.mu.Lock()
	m.settings = settings
	m.mu.Unlock()

	logrus.Infof("settings applied: concurrency=%d probe_rate=%g", settings.Concurrency, settings.ProbeRate)
	return nil
}

// ValidateLimit accepts 0 (no limit) or a value in [1, MaxLimit].
func ValidateLimit(limit int) error {
	if limit < 0 || limit > MaxLimit {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLimit, limit, MaxLimit)
	}
	return nil
}

func validateSettings(s models.Settings) error {
	if s.Concurrency < 1 || s.Concurrency > MaxConcurrency {
		return fmt.Errorf("%w: concurrency %d not in [1, %d]", ErrInvalidSettings, s.Concurrency, MaxConcurrency)
	}
	if s.ProbeRate < 0 || math.IsNaN(s.ProbeRate) || math.IsInf(s.ProbeRate, 0) {
		return fmt.Errorf("%w: probe_rate %g", ErrInvalidSettings, s.ProbeRate)
	}
	return nil
}

// newLimiter paces probe starts at perSecond; zero means no pacing.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(math.Ceil(perSecond))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
