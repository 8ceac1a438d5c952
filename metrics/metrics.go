// Package metrics maintains the process-wide accumulator the Miner
// Controller and Submitter update synchronously with their state
// transitions: submission counts, best deadlines per account, round
// timings, and error tallies. It is a straight Go rendering of
// original_source/src/metrics.rs's MinerMetrics, kept behind a single
// mutex the way the corpus guards small, frequently-updated shared structs
// (compare contractmanager's usage of a single lock per storage folder for
// its non-atomic fields).
package metrics

import (
	"fmt"
	"sync"
	"time"
)

// HealthStatus summarizes the miner's overall condition from its
// accumulated counters.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Warning
	Critical
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// roundTimeSmoothing is the exponential-moving-average factor applied to
// round durations, matching the source's alpha=0.1.
const roundTimeSmoothing = 0.1

// Metrics is the miner's process-wide counters. Use NewMetrics to construct
// one; the zero value is not usable because StartTime would be unset.
type Metrics struct {
	mu sync.Mutex

	startTime time.Time

	totalSubmissions      uint64
	successfulSubmissions uint64
	failedSubmissions     uint64
	bestDeadlines         map[uint64]uint64

	roundsCompleted uint64
	roundsFailed    uint64

	ioErrorsByDrive map[string]uint64
	totalIOErrors   uint64

	configErrors   uint64
	networkErrors  uint64

	lastSubmission time.Time
	avgRoundTimeMs float64
	totalBytesRead uint64
}

// NewMetrics returns an initialized, empty Metrics accumulator with its
// uptime clock started.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime:       time.Now(),
		bestDeadlines:   make(map[uint64]uint64),
		ioErrorsByDrive: make(map[string]uint64),
	}
}

// RecordSubmissionSuccess records an accepted submission for accountID and
// updates that account's best deadline if deadline is an improvement.
func (m *Metrics) RecordSubmissionSuccess(accountID, deadline uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSubmissions++
	m.successfulSubmissions++
	m.lastSubmission = time.Now()

	best, ok := m.bestDeadlines[accountID]
	if !ok || deadline < best {
		m.bestDeadlines[accountID] = deadline
	}
}

// RecordSubmissionFailure records one failed submission attempt (a
// transport error or an upstream rejection). A job that is retried is
// counted once per failed attempt.
func (m *Metrics) RecordSubmissionFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSubmissions++
	m.failedSubmissions++
}

// RecordRoundComplete records a completed round's wall-clock duration and
// folds it into the exponential moving average of round time.
func (m *Metrics) RecordRoundComplete(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roundsCompleted++
	ms := float64(duration.Milliseconds())
	m.avgRoundTimeMs = roundTimeSmoothing*ms + (1-roundTimeSmoothing)*m.avgRoundTimeMs
}

// RecordRoundFailure records a round that ended without any drive
// reporting completion (e.g. superseded before finishing).
func (m *Metrics) RecordRoundFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roundsFailed++
}

// RecordIOError records a read failure attributed to driveID.
func (m *Metrics) RecordIOError(driveID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalIOErrors++
	m.ioErrorsByDrive[driveID]++
}

// RecordNetworkError records a transport-level failure talking to the
// upstream (submission or puzzle poll).
func (m *Metrics) RecordNetworkError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.networkErrors++
}

// RecordConfigError records a startup configuration failure.
func (m *Metrics) RecordConfigError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configErrors++
}

// RecordBytesRead adds n to the running total of bytes read from plot
// files.
func (m *Metrics) RecordBytesRead(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalBytesRead += n
}

// Snapshot is an immutable, point-in-time copy of Metrics safe to log,
// export, or compare without holding any lock.
type Snapshot struct {
	Uptime                time.Duration
	TotalSubmissions      uint64
	SuccessfulSubmissions uint64
	FailedSubmissions     uint64
	BestDeadlines         map[uint64]uint64
	RoundsCompleted       uint64
	RoundsFailed          uint64
	IOErrorsByDrive       map[string]uint64
	TotalIOErrors         uint64
	ConfigErrors          uint64
	NetworkErrors         uint64
	LastSubmission        time.Time
	AvgRoundTimeMs        float64
	TotalBytesRead        uint64
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	bestDeadlines := make(map[uint64]uint64, len(m.bestDeadlines))
	for k, v := range m.bestDeadlines {
		bestDeadlines[k] = v
	}
	ioErrors := make(map[string]uint64, len(m.ioErrorsByDrive))
	for k, v := range m.ioErrorsByDrive {
		ioErrors[k] = v
	}

	return Snapshot{
		Uptime:                time.Since(m.startTime),
		TotalSubmissions:      m.totalSubmissions,
		SuccessfulSubmissions: m.successfulSubmissions,
		FailedSubmissions:     m.failedSubmissions,
		BestDeadlines:         bestDeadlines,
		RoundsCompleted:       m.roundsCompleted,
		RoundsFailed:          m.roundsFailed,
		IOErrorsByDrive:       ioErrors,
		TotalIOErrors:         m.totalIOErrors,
		ConfigErrors:          m.configErrors,
		NetworkErrors:         m.networkErrors,
		LastSubmission:        m.lastSubmission,
		AvgRoundTimeMs:        m.avgRoundTimeMs,
		TotalBytesRead:        m.totalBytesRead,
	}
}

// SubmissionSuccessRate returns the percentage of submissions that were
// accepted, or 0 if none have been attempted.
func (s Snapshot) SubmissionSuccessRate() float64 {
	if s.TotalSubmissions == 0 {
		return 0
	}
	return float64(s.SuccessfulSubmissions) / float64(s.TotalSubmissions) * 100
}

// RoundSuccessRate returns the percentage of rounds that completed, or 0 if
// none have run.
func (s Snapshot) RoundSuccessRate() float64 {
	total := s.RoundsCompleted + s.RoundsFailed
	if total == 0 {
		return 0
	}
	return float64(s.RoundsCompleted) / float64(total) * 100
}

// AvgReadSpeedMiBs returns the average bytes-read throughput since startup
// in mebibytes per second.
func (s Snapshot) AvgReadSpeedMiBs() float64 {
	uptimeMs := float64(s.Uptime.Milliseconds())
	if uptimeMs == 0 {
		return 0
	}
	return (float64(s.TotalBytesRead) / 1024 / 1024) * 1000 / uptimeMs
}

// HealthStatus classifies the snapshot's overall condition using the same
// thresholds as the source: elevated I/O error rate, round failure rate, or
// network error volume degrade the status.
func (s Snapshot) HealthStatus() HealthStatus {
	ioErrorRate := 0.0
	if s.TotalBytesRead > 0 {
		mib := float64(s.TotalBytesRead) / 1024 / 1024
		if mib > 0 {
			ioErrorRate = float64(s.TotalIOErrors) / mib * 100
		}
	}
	roundFailureRate := 0.0
	if s.RoundsCompleted+s.RoundsFailed > 0 {
		roundFailureRate = 100 - s.RoundSuccessRate()
	}

	switch {
	case ioErrorRate > 5.0 || roundFailureRate > 20.0 || s.NetworkErrors > 100:
		return Critical
	case ioErrorRate > 1.0 || roundFailureRate > 10.0 || s.NetworkErrors > 50:
		return Warning
	default:
		return Healthy
	}
}

// Summary renders a short human-readable report, mirroring the fields the
// source's summary() prints.
func (s Snapshot) Summary() string {
	out := "=== MINER METRICS ===\n"
	out += fmt.Sprintf("Uptime: %s\n", s.Uptime.Round(time.Second))
	out += fmt.Sprintf("Rounds: %d completed, %d failed (%.1f%% success)\n",
		s.RoundsCompleted, s.RoundsFailed, s.RoundSuccessRate())
	out += fmt.Sprintf("Avg Round Time: %.0fms\n", s.AvgRoundTimeMs)
	out += fmt.Sprintf("Submissions: %d total, %d successful, %d failed (%.1f%% success)\n",
		s.TotalSubmissions, s.SuccessfulSubmissions, s.FailedSubmissions, s.SubmissionSuccessRate())
	out += fmt.Sprintf("Data Read: %.2f GiB (avg %.2f MiB/s)\n",
		float64(s.TotalBytesRead)/1024/1024/1024, s.AvgReadSpeedMiBs())
	out += fmt.Sprintf("I/O Errors: %d total\n", s.TotalIOErrors)
	out += fmt.Sprintf("Network Errors: %d\n", s.NetworkErrors)
	return out
}
