package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go-recon/domain"
	"go-recon/metrics"
	"go-recon/models"
	"go-recon/recon"
)

const (
	DefaultMaxConcurrentJobs = 4
	DefaultJobTTL            = time.Hour
	DefaultCleanupInterval   = 5 * time.Minute
)

// Manager runs scans in the background. Jobs live in memory until they
// expire; nothing is persisted.
type Manager struct {
	scanner Scanner

	mu      sync.RWMutex
	jobs    map[string]*Job
	queued  int
	running int

	slots  chan struct{}
	jobTTL time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager starts a job manager running at most maxConcurrent scans at
// once. Finished jobs older than jobTTL are dropped every cleanupInterval.
func NewManager(s Scanner, maxConcurrent int, jobTTL, cleanupInterval time.Duration) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	if jobTTL <= 0 {
		jobTTL = DefaultJobTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		scanner: s,
		jobs:    make(map[string]*Job),
		slots:   make(chan struct{}, maxConcurrent),
		jobTTL:  jobTTL,
		ctx:     ctx,
		cancel:  cancel,
	}

	m.wg.Add(1)
	go m.cleanupLoop(cleanupInterval)

	logrus.Infof("Job manager initialized: max %d concurrent jobs", maxConcurrent)
	return m
}

// Submit validates the request and queues a scan. Invalid input is
// rejected here rather than producing a failed job.
func (m *Manager) Submit(rawDomain string, limit int) (Job, error) {
	d, err := domain.Validate(rawDomain)
	if err != nil {
		return Job{}, err
	}
	if err := recon.ValidateLimit(limit); err != nil {
		return Job{}, err
	}

	job := &Job{
		ID:        uuid.NewString(),
		Domain:    d,
		Limit:     limit,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return Job{}, ErrClosed
	}
	m.jobs[job.ID] = job
	m.queued++
	snapshot := *job
	m.wg.Add(1)
	m.mu.Unlock()
	metrics.GetMetrics().JobsQueued.Inc()

	go m.execute(job)

	logrus.WithField("job", job.ID).Infof("queued scan of %s", d)
	return snapshot, nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// Stats returns the current queue occupancy.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Running:       m.running,
		Queued:        m.queued,
		MaxConcurrent: cap(m.slots),
	}
}

// Close stops the cleanup loop, cancels running scans and waits for every
// job goroutine to return.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) execute(job *Job) {
	defer m.wg.Done()

	select {
	case m.slots <- struct{}{}:
	case <-m.ctx.Done():
		m.finish(job, nil, m.ctx.Err(), true)
		return
	}
	defer func() { <-m.slots }()

	now := time.Now()
	m.mu.Lock()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	m.queued--
	m.running++
	m.mu.Unlock()
	metrics.GetMetrics().JobsQueued.Dec()

	report, err := m.scanner.Scan(m.ctx, job.Domain, job.Limit)
	m.finish(job, report, err, false)
}

// finish records the outcome. fromQueue is set when the job never ran.
func (m *Manager) finish(job *Job, report *models.ScanReport, err error, fromQueue bool) {
	now := time.Now()

	m.mu.Lock()
	job.EndedAt = &now
	if fromQueue {
		m.queued--
	} else {
		m.running--
	}
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusCompleted
		job.Report = report
	}
	status := job.Status
	m.mu.Unlock()

	if fromQueue {
		metrics.GetMetrics().JobsQueued.Dec()
	}
	metrics.GetMetrics().JobsTotal.WithLabelValues(string(status)).Inc()
	logrus.WithField("job", job.ID).Infof("Job finished with status: %s", status)
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.cleanup(now)
		}
	}
}

// cleanup drops finished jobs that ended before now minus the TTL.
func (m *Manager) cleanup(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.jobTTL)
	removed := 0
	for id, job := range m.jobs {
		if job.Finished() && job.EndedAt != nil && job.EndedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}
