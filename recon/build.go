package recon

import (
	"go-recon/client"
	"go-recon/config"
	ct "go-recon/ct-client"
	web "go-recon/web-prober"
)

// FromConfig wires the certificate-log client, the shared probe pool and
// the prober described by cfg into a *Manager.
func FromConfig(cfg *config.Config, store SettingsStore) *Manager {
	client.Configure(cfg.Probe.Pool)

	defaults := DefaultSettings()
	if cfg.Probe.Concurrency > 0 && cfg.Probe.Concurrency <= MaxConcurrency {
		defaults.Concurrency = cfg.Probe.Concurrency
	}

	return newManager(
		ct.New(cfg.CTLog),
		web.New(client.Shared(), cfg.Probe.Timeout),
		store,
		defaults,
	)
}
