package metrics

import (
	"sync"
	"time"
)

// Metrics collects in-process counters for the crawl pipeline. A snapshot
// is served by the monitoring endpoints in cmd/newsherd.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	SourcesCrawled     int64
	ArticlesQueued     int64
	ArticlesExtracted  int64
	ExtractionsFailed  int64
	PairwiseFailures   int64
	ToursComputed      int64
	LabelsAssigned     int64
	DigestEmailsSent   int64

	// Timings
	LastRunDuration  time.Duration
	TotalRunDuration time.Duration
	RunCount         int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddSourcesCrawled(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourcesCrawled += int64(n)
}

func (m *Metrics) AddArticlesQueued(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesQueued += int64(n)
}

func (m *Metrics) IncrementArticlesExtracted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesExtracted++
}

func (m *Metrics) IncrementExtractionsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExtractionsFailed++
}

func (m *Metrics) IncrementPairwiseFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PairwiseFailures++
}

func (m *Metrics) IncrementToursComputed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ToursComputed++
}

func (m *Metrics) AddLabelsAssigned(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LabelsAssigned += int64(n)
}

func (m *Metrics) IncrementDigestEmailsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DigestEmailsSent++
}

func (m *Metrics) RecordRun(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.RunCount++
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"sources_crawled":      m.SourcesCrawled,
		"articles_queued":      m.ArticlesQueued,
		"articles_extracted":   m.ArticlesExtracted,
		"extractions_failed":   m.ExtractionsFailed,
		"pairwise_failures":    m.PairwiseFailures,
		"tours_computed":       m.ToursComputed,
		"labels_assigned":      m.LabelsAssigned,
		"digest_emails_sent":   m.DigestEmailsSent,
		"last_run_duration_ms": m.LastRunDuration.Milliseconds(),
		"run_count":            m.RunCount,
		"last_run_time":        m.LastRunTime.Format(time.RFC3339),
		"last_error_time":      m.LastErrorTime.Format(time.RFC3339),
		"last_error":           m.LastError,
		"is_healthy":           m.IsHealthy,
	}
}
