// Package diskhealth tracks per-drive read success/failure counts with
// atomics, the way the contract manager's storage folders track read and
// write outcomes (atomicFailedReads/atomicSuccessfulReads in
// modules/host/contractmanager/sector.go) rather than behind a mutex, since
// the counters are updated from the hot read path of many drives
// concurrently and never need to be read-modify-written together.
package diskhealth

import (
	"sync"
	"sync/atomic"
)

// degradedThreshold is the number of consecutive read failures that marks a
// drive degraded for metrics purposes.
const degradedThreshold = 3

// driveHealth holds one drive's atomic counters. Fields are only ever
// accessed through atomic operations; the struct itself is never copied
// after being placed in the Monitor's map.
type driveHealth struct {
	successfulReads   uint64
	failedReads       uint64
	consecutiveFails  uint32
}

// Monitor is the process-wide disk-health record shared by every Reader.
// New drives are added lazily on first use.
type Monitor struct {
	mu     sync.RWMutex
	drives map[string]*driveHealth
}

// NewMonitor returns an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{drives: make(map[string]*driveHealth)}
}

func (m *Monitor) drive(driveID string) *driveHealth {
	m.mu.RLock()
	d, ok := m.drives[driveID]
	m.mu.RUnlock()
	if ok {
		return d
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drives[driveID]; ok {
		return d
	}
	d = &driveHealth{}
	m.drives[driveID] = d
	return d
}

// RecordSuccess records one successful read on driveID and clears its
// consecutive-failure streak.
func (m *Monitor) RecordSuccess(driveID string) {
	d := m.drive(driveID)
	atomic.AddUint64(&d.successfulReads, 1)
	atomic.StoreUint32(&d.consecutiveFails, 0)
}

// RecordFailure records one failed read on driveID and returns true if the
// drive is in the "degraded" state after this failure (three or more
// consecutive failures), so every further failure in the same streak also
// returns true.
func (m *Monitor) RecordFailure(driveID string) (degraded bool) {
	d := m.drive(driveID)
	atomic.AddUint64(&d.failedReads, 1)
	n := atomic.AddUint32(&d.consecutiveFails, 1)
	return n >= degradedThreshold
}

// Snapshot is a point-in-time, non-atomic copy of one drive's counters,
// safe to log or export.
type Snapshot struct {
	DriveID          string
	SuccessfulReads  uint64
	FailedReads      uint64
	ConsecutiveFails uint32
	Degraded         bool
}

// Snapshot returns a read-only copy of driveID's current counters.
func (m *Monitor) Snapshot(driveID string) Snapshot {
	d := m.drive(driveID)
	fails := atomic.LoadUint32(&d.consecutiveFails)
	return Snapshot{
		DriveID:          driveID,
		SuccessfulReads:  atomic.LoadUint64(&d.successfulReads),
		FailedReads:      atomic.LoadUint64(&d.failedReads),
		ConsecutiveFails: fails,
		Degraded:         fails >= degradedThreshold,
	}
}

// Drives returns the ids of every drive this monitor has seen.
func (m *Monitor) Drives() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.drives))
	for id := range m.drives {
		ids = append(ids, id)
	}
	return ids
}
