/*
Package client provides the process-wide HTTP client used by liveness probes.

Every probe in every scan shares one transport, so the connection limits
configured here are the real ceiling on outbound load, independent of how
many scans run at once.
*/
package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go-recon/metrics"
	"golang.org/x/sync/semaphore"
)

// Pool limits.
const (
	// MaxConns caps open connections across all hosts, active and idle.
	MaxConns = 50
	// MaxIdleConnsPerHost caps keep-alive connections kept per target.
	MaxIdleConnsPerHost = 10
)

var (
	defaultDialTimeout     = 5 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	// evictInterval is how often a blocked dial closes idle connections again.
	evictInterval = 25 * time.Millisecond

	sharedClient     *http.Client
	sharedClientLock sync.RWMutex
)

// Config holds the pool parameters. A zero-value Config uses the defaults.
type Config struct {
	MaxConns            int           `yaml:"max_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	DialTimeout         time.Duration `yaml:"dial_timeout"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	InsecureTLS         bool          `yaml:"insecure_tls"`
}

// DefaultConfig returns the default pool limits.
func DefaultConfig() Config {
	return Config{
		MaxConns:            MaxConns,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		DialTimeout:         defaultDialTimeout,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxConns <= 0 {
		c.MaxConns = d.MaxConns
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = d.IdleConnTimeout
	}
}

// New builds an *http.Client whose transport never holds more than
// cfg.MaxConns open connections. Idle keep-alives are capped at
// cfg.MaxIdleConnsPerHost in total and are closed whenever a new dial finds
// the pool full. Redirects use the default policy.
func New(cfg Config) *http.Client {
	cfg.applyDefaults()
	maxIdle := min(cfg.MaxIdleConnsPerHost, cfg.MaxConns)

	dialer := &limitedDialer{
		dialer: &net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: defaultKeepAlive,
		},
		sem: semaphore.NewWeighted(int64(cfg.MaxConns)),
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdle,
		MaxConnsPerHost:       cfg.MaxConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureTLS,
		},
	}
	dialer.evict = transport.CloseIdleConnections

	return &http.Client{Transport: transport}
}

// Configure replaces the shared client. Idle connections of the previous
// transport are closed.
func Configure(cfg Config) {
	sharedClientLock.Lock()
	defer sharedClientLock.Unlock()

	if sharedClient != nil {
		sharedClient.CloseIdleConnections()
	}
	sharedClient = New(cfg)
}

// Shared returns the process-wide client, creating it with defaults on first use.
func Shared() *http.Client {
	sharedClientLock.RLock()
	c := sharedClient
	sharedClientLock.RUnlock()
	if c != nil {
		return c
	}

	sharedClientLock.Lock()
	defer sharedClientLock.Unlock()
	if sharedClient == nil {
		sharedClient = New(DefaultConfig())
	}
	return sharedClient
}

// limitedDialer admits a new connection only while fewer than the
// semaphore's weight are open. The slot is returned when the conn closes.
// Idle keep-alives hold slots too, so a dial that finds the pool full calls
// evict until a slot frees up or ctx is done.
type limitedDialer struct {
	dialer *net.Dialer
	sem    *semaphore.Weighted
	evict  func()
	open   atomic.Int64
}

func (d *limitedDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}

	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		d.sem.Release(1)
		return nil, err
	}

	d.open.Add(1)
	metrics.GetMetrics().PoolConns.Inc()
	return &trackedConn{Conn: conn, release: d.release}, nil
}

func (d *limitedDialer) acquire(ctx context.Context) error {
	if d.sem.TryAcquire(1) {
		return nil
	}

	for {
		if d.evict != nil {
			d.evict()
		}

		wait, cancel := context.WithTimeout(ctx, evictInterval)
		err := d.sem.Acquire(wait, 1)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *limitedDialer) release() {
	d.open.Add(-1)
	metrics.GetMetrics().PoolConns.Dec()
	d.sem.Release(1)
}

// trackedConn runs release exactly once, on the first Close.
type trackedConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}
