package recon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-recon/client"
	"go-recon/domain"
	"go-recon/models"
	web "go-recon/web-prober"
	"golang.org/x/time/rate"
)

type fakeDiscoverer struct {
	hosts []string
	calls atomic.Int32
	got   string
}

func (f *fakeDiscoverer) Discover(_ context.Context, d string) map[string]struct{} {
	f.calls.Add(1)
	f.got = d
	set := make(map[string]struct{}, len(f.hosts))
	for _, h := range f.hosts {
		set[h] = struct{}{}
	}
	return set
}

// fakeProber marks hosts in alive as reachable and tracks peak concurrency.
type fakeProber struct {
	alive    map[string]bool
	delay    func(host string) time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32

	mu     sync.Mutex
	probed []string
}

func (f *fakeProber) Probe(_ context.Context, host string) models.ProbeResult {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay != nil {
		time.Sleep(f.delay(host))
	}

	f.mu.Lock()
	f.probed = append(f.probed, host)
	f.mu.Unlock()

	if !f.alive[host] {
		return models.Unreachable(host)
	}
	protocol := models.ProtocolHTTPS
	status := 200
	final := "https://" + host + "/"
	ms := int64(120)
	return models.ProbeResult{
		Host:       host,
		Reachable:  true,
		Protocol:   &protocol,
		StatusCode: &status,
		FinalURL:   &final,
		ElapsedMS:  &ms,
	}
}

type memStore struct {
	settings models.Settings
	saved    bool
	err      error
}

func (s *memStore) FetchSettings() (models.Settings, bool, error) {
	return s.settings, s.saved, s.err
}

func (s *memStore) UpdateSettings(settings models.Settings) error {
	if s.err != nil {
		return s.err
	}
	s.settings = settings
	s.saved = true
	return nil
}

func TestManager_ScanExample(t *testing.T) {
	d := &fakeDiscoverer{hosts: []string{"b.example.com", "a.example.com"}}
	p := &fakeProber{alive: map[string]bool{"a.example.com": true}}
	m := NewManager(d, p, nil)

	report, err := m.Scan(context.Background(), " Example.COM ", 0)
	require.NoError(t, err)

	assert.Equal(t, "example.com", d.got)
	assert.Equal(t, "example.com", report.Domain)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Alive)
	require.Len(t, report.Results, 2)

	a := report.Results[0]
	assert.Equal(t, "a.example.com", a.Host)
	assert.True(t, a.Reachable)
	assert.Equal(t, "https", *a.Protocol)
	assert.Equal(t, 200, *a.StatusCode)
	assert.Equal(t, int64(120), *a.ElapsedMS)

	b := report.Results[1]
	assert.Equal(t, models.Unreachable("b.example.com"), b)
}

func TestManager_ScanOrderAndBound(t *testing.T) {
	hosts := make([]string, 230)
	alive := map[string]bool{}
	for i := range hosts {
		hosts[i] = fmt.Sprintf("h%03d.example.com", i)
		if i%3 == 0 {
			alive[hosts[i]] = true
		}
	}

	p := &fakeProber{
		alive: alive,
		// Later hosts finish first so completion order differs from input order.
		delay: func(host string) time.Duration {
			n, _ := strconv.Atoi(host[1:4])
			return time.Duration(5-n%5) * time.Millisecond
		},
	}
	m := NewManager(&fakeDiscoverer{hosts: hosts}, p, nil)

	report, err := m.Scan(context.Background(), "example.com", 0)
	require.NoError(t, err)

	sorted := append([]string(nil), hosts...)
	sort.Strings(sorted)

	require.Len(t, report.Results, len(sorted))
	reachable := 0
	for i, r := range report.Results {
		assert.Equal(t, sorted[i], r.Host)
		if r.Reachable {
			reachable++
		}
	}
	assert.Equal(t, reachable, report.Alive)
	assert.Equal(t, len(hosts), report.Total)
	assert.LessOrEqual(t, p.peak.Load(), int32(MaxConcurrency))
	assert.Greater(t, p.peak.Load(), int32(1))
}

func TestManager_ScanLimitTakesLexicalPrefix(t *testing.T) {
	d := &fakeDiscoverer{hosts: []string{"d.example.com", "b.example.com", "c.example.com", "a.example.com"}}
	p := &fakeProber{}
	m := NewManager(d, p, nil)

	report, err := m.Scan(context.Background(), "example.com", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 0, report.Alive)
	assert.Equal(t, "a.example.com", report.Results[0].Host)
	assert.Equal(t, "b.example.com", report.Results[1].Host)
	assert.ElementsMatch(t, []string{"a.example.com", "b.example.com"}, p.probed)
}

func TestManager_ScanLimitLargerThanHosts(t *testing.T) {
	m := NewManager(&fakeDiscoverer{hosts: []string{"a.example.com"}}, &fakeProber{}, nil)

	report, err := m.Scan(context.Background(), "example.com", 500)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
}

func TestManager_ScanNoHosts(t *testing.T) {
	p := &fakeProber{}
	m := NewManager(&fakeDiscoverer{}, p, nil)

	report, err := m.Scan(context.Background(), "example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0, report.Alive)
	assert.NotNil(t, report.Results)
	assert.Empty(t, p.probed)
}

func TestManager_ScanInvalidInput(t *testing.T) {
	d := &fakeDiscoverer{}
	m := NewManager(d, &fakeProber{}, nil)

	_, err := m.Scan(context.Background(), "not a domain", 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidDomain))

	for _, limit := range []int{-1, 501} {
		_, err = m.Scan(context.Background(), "example.com", limit)
		assert.True(t, errors.Is(err, ErrInvalidLimit), limit)
	}

	assert.Equal(t, int32(0), d.calls.Load(), "invalid input must not reach the network")
}

func TestManager_ListSubdomains(t *testing.T) {
	d := &fakeDiscoverer{hosts: []string{"www.example.com", "api.example.com", "example.com"}}
	p := &fakeProber{}
	m := NewManager(d, p, nil)

	list, err := m.ListSubdomains(context.Background(), "EXAMPLE.com")
	require.NoError(t, err)

	assert.Equal(t, "example.com", list.Domain)
	assert.Equal(t, 3, list.Count)
	assert.Equal(t, []string{"api.example.com", "example.com", "www.example.com"}, list.Subdomains)
	assert.True(t, sort.StringsAreSorted(list.Subdomains))
	assert.Empty(t, p.probed)

	_, err = m.ListSubdomains(context.Background(), "https://example.com")
	assert.True(t, errors.Is(err, domain.ErrInvalidDomain))
}

func TestManager_SettingsBoundConcurrency(t *testing.T) {
	hosts := make([]string, 40)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("h%02d.example.com", i)
	}
	p := &fakeProber{delay: func(string) time.Duration { return 2 * time.Millisecond }}
	m := NewManager(&fakeDiscoverer{hosts: hosts}, p, nil)

	require.NoError(t, m.ApplySettings(models.Settings{Concurrency: 3}))
	_, err := m.Scan(context.Background(), "example.com", 0)
	require.NoError(t, err)

	assert.LessOrEqual(t, p.peak.Load(), int32(3))
}

func TestManager_ProbeRatePacesStarts(t *testing.T) {
	hosts := []string{"a.example.com", "b.example.com", "c.example.com", "d.example.com"}
	m := NewManager(&fakeDiscoverer{hosts: hosts}, &fakeProber{}, nil)
	require.NoError(t, m.ApplySettings(models.Settings{Concurrency: 4, ProbeRate: 20}))

	start := time.Now()
	report, err := m.Scan(context.Background(), "example.com", 0)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	// Burst covers all four starts at 20/s.
	assert.Less(t, time.Since(start), time.Second)
}

func TestManager_ApplySettings(t *testing.T) {
	store := &memStore{}
	m := NewManager(&fakeDiscoverer{}, &fakeProber{}, store)
	assert.Equal(t, DefaultSettings(), m.Settings())

	require.NoError(t, m.ApplySettings(models.Settings{Concurrency: 10, ProbeRate: 1.5}))
	assert.Equal(t, models.Settings{Concurrency: 10, ProbeRate: 1.5}, m.Settings())
	assert.Equal(t, models.Settings{Concurrency: 10, ProbeRate: 1.5}, store.settings)

	invalid := []models.Settings{
		{Concurrency: 0},
		{Concurrency: 51},
		{Concurrency: 5, ProbeRate: -1},
	}
	for _, s := range invalid {
		err := m.ApplySettings(s)
		assert.True(t, errors.Is(err, ErrInvalidSettings), "%+v", s)
	}
	assert.Equal(t, models.Settings{Concurrency: 10, ProbeRate: 1.5}, m.Settings())

	store.err = errors.New("disk full")
	assert.Error(t, m.ApplySettings(models.Settings{Concurrency: 7}))
	assert.Equal(t, 10, m.Settings().Concurrency)
}

func TestNewManager_LoadsSavedSettings(t *testing.T) {
	store := &memStore{settings: models.Settings{Concurrency: 8}, saved: true}
	m := NewManager(&fakeDiscoverer{}, &fakeProber{}, store)
	assert.Equal(t, 8, m.Settings().Concurrency)

	bad := &memStore{settings: models.Settings{Concurrency: 900}, saved: true}
	m = NewManager(&fakeDiscoverer{}, &fakeProber{}, bad)
	assert.Equal(t, DefaultSettings(), m.Settings())

	broken := &memStore{err: errors.New("locked")}
	m = NewManager(&fakeDiscoverer{}, &fakeProber{}, broken)
	assert.Equal(t, DefaultSettings(), m.Settings())
}

func TestNewLimiter(t *testing.T) {
	unpaced := newLimiter(0)
	assert.Equal(t, rate.Inf, unpaced.Limit())
	assert.NoError(t, unpaced.Wait(context.Background()))

	paced := newLimiter(2.5)
	assert.Equal(t, rate.Limit(2.5), paced.Limit())
	assert.Equal(t, 3, paced.Burst())
}

func TestManager_ScanLiveHostsBeyondPoolSize(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	var hosts []string
	for i := 0; i < 2*client.MaxConns+20; i++ {
		ts := httptest.NewServer(handler)
		t.Cleanup(ts.Close)
		hosts = append(hosts, strings.TrimPrefix(ts.URL, "http://"))
	}

	prober := web.New(client.New(client.DefaultConfig()), 2*time.Second)
	m := NewManager(&fakeDiscoverer{hosts: hosts}, prober, nil)

	// Two passes: the second starts with the idle pool already full.
	for pass := 0; pass < 2; pass++ {
		report, err := m.Scan(context.Background(), "example.com", 0)
		require.NoError(t, err)
		assert.Equal(t, len(hosts), report.Total)
		for _, res := range report.Results {
			assert.True(t, res.Reachable, "pass %d: %s reported unreachable", pass, res.Host)
		}
		assert.Equal(t, len(hosts), report.Alive, "pass %d", pass)
	}
}
