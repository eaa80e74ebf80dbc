package web_prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"go-recon/metrics"
	"go-recon/models"
)

const (
	// DefaultTimeout bounds a single scheme attempt, redirects included.
	DefaultTimeout = 5 * time.Second
	// maxTitleBytes caps how much of an HTML body is parsed for its title.
	maxTitleBytes = 512 << 10
)

// schemes are tried in this order; the first one answering wins.
var schemes = []string{models.ProtocolHTTPS, models.ProtocolHTTP}

// Prober checks whether a host answers HTTP at all.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// New returns a *Prober sending requests through client.
func New(client *http.Client, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: client, timeout: timeout}
}

// Probe tries https then http against host. It always returns a result:
// transport failures are folded into Reachable=false.
func (p *Prober) Probe(ctx context.Context, host string) models.ProbeResult {
	m := metrics.GetMetrics()
	m.ProbesInFlight.Inc()
	defer m.ProbesInFlight.Dec()

	for _, scheme := range schemes {
		res, err := p.attempt(ctx, scheme, host)
		if err != nil {
			logrus.WithFields(logrus.Fields{"host": host, "scheme": scheme}).Debugf("probe failed: %v", err)
			continue
		}
		m.ProbesTotal.WithLabelValues(scheme).Inc()
		return res
	}

	m.ProbesTotal.WithLabelValues("none").Inc()
	return models.Unreachable(host)
}

// attempt performs one GET against scheme://host.
func (p *Prober) attempt(ctx context.Context, scheme, host string) (res models.ProbeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host, nil)
	if err != nil {
		return models.ProbeResult{}, err
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.GetMetrics().ProbeDuration.WithLabelValues(scheme, outcome).Observe(elapsed.Seconds())
	if err != nil {
		return models.ProbeResult{}, err
	}
	defer resp.Body.Close()

	protocol := scheme
	status := resp.StatusCode
	finalURL := resp.Request.URL.String()
	ms := elapsed.Milliseconds()

	res = models.ProbeResult{
		Host:       host,
		Reachable:  true,
		Protocol:   &protocol,
		StatusCode: &status,
		FinalURL:   &finalURL,
		ElapsedMS:  &ms,
	}
	if title := pageTitle(resp); title != "" {
		res.Title = &title
	}

	logrus.WithFields(logrus.Fields{"host": host, "scheme": scheme}).Debugf("reachable: %d in %dms", status, ms)
	return res, nil
}

// pageTitle extracts <title> from an HTML response. Read errors only cost
// the title, never reachability.
func pageTitle(resp *http.Response) string {
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxTitleBytes))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
