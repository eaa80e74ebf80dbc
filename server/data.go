package server

import (
	"context"

	"go-recon/jobs"
	"go-recon/models"
)

const (
	appName    = "Recon API"
	appVersion = "0.1.0"
)

// response defines the basic error response returned by the server.
type response struct {
	Error  bool   `json:"error"`
	Detail string `json:"detail"`
}

// InfoResponse defines the JSON structure of the root endpoint.
type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse defines the JSON structure of the /health endpoint.
type HealthResponse struct {
	OK  bool   `json:"ok"`
	Env string `json:"env"`
}

// JobRequestAPI defines the JSON structure for incoming job requests.
type JobRequestAPI struct {
	Domain string `json:"domain"`
	Limit  int    `json:"limit"`
}

// Recon is the scan pipeline served over HTTP.
type Recon interface {
	ListSubdomains(ctx context.Context, rawDomain string) (*models.SubdomainList, error)
	Scan(ctx context.Context, rawDomain string, limit int) (*models.ScanReport, error)
	Settings() models.Settings
	ApplySettings(models.Settings) error
}

// Jobs is the asynchronous scan queue served over HTTP.
type Jobs interface {
	Submit(rawDomain string, limit int) (jobs.Job, error)
	Get(id string) (jobs.Job, error)
	Stats() jobs.Stats
}
