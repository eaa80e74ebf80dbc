package ct_client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go-recon/domain"
	"go-recon/metrics"
)

// Client queries a certificate-transparency search service for the names
// certified under a domain.
type Client struct {
	baseURL      string
	http         *http.Client
	strictSuffix bool
}

// New returns a *Client. Zero values in cfg fall back to the defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         &http.Client{Timeout: cfg.Timeout},
		strictSuffix: cfg.StrictSuffix,
	}
}

// Discover returns the set of hostnames logged for d. Any upstream failure
// yields an empty set; the error is only logged.
func (c *Client) Discover(ctx context.Context, d string) map[string]struct{} {
	m := metrics.GetMetrics()
	start := time.Now()

	entries, err := c.fetch(ctx, d)
	m.DiscoveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.DiscoveryRequests.WithLabelValues("error").Inc()
		logrus.WithField("domain", d).Warnf("certificate log query failed: %v", err)
		return map[string]struct{}{}
	}
	m.DiscoveryRequests.WithLabelValues("ok").Inc()

	hosts := extractHostnames(entries, d, c.strictSuffix)
	m.DiscoveredHosts.Observe(float64(len(hosts)))
	logrus.WithField("domain", d).Infof("certificate log returned %d entries, %d hostnames", len(entries), len(hosts))
	return hosts
}

// fetch issues the single query for "%.<domain>" and decodes the entries.
func (c *Client) fetch(ctx context.Context, d string) ([]crtEntry, error) {
	q := url.Values{}
	q.Set("q", "%."+d)
	q.Set("output", "json")
	endpoint := c.baseURL + "/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certificate log returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var entries []crtEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode certificate log response: %w", err)
	}
	return entries, nil
}

// extractHostnames normalizes every name of every entry and keeps the
// non-wildcard ones that belong to d.
func extractHostnames(entries []crtEntry, d string, strict bool) map[string]struct{} {
	hosts := make(map[string]struct{})
	for _, entry := range entries {
		// Some certificates can contain domains separated by new line.
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || strings.Contains(name, "*") {
				continue
			}
			if domain.HasSuffix(name, d, strict) {
				hosts[name] = struct{}{}
			}
		}
	}
	return hosts
}
