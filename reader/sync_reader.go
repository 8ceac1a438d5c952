package reader

import (
	"context"
	"runtime"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/diskhealth"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/registry"
)

// SyncReader is the blocking-thread-per-drive implementation: Run locks its
// goroutine to an OS thread for the duration of the scan, so a slow
// synchronous read on one drive never causes the Go scheduler to migrate
// this drive's work onto a thread another drive is blocked on, mirroring a
// dedicated worker thread per drive.
type SyncReader struct {
	c *core
}

// NewSyncReader constructs a SyncReader for one drive.
func NewSyncReader(drive registry.Drive, pool *bufpool.Pool, health *diskhealth.Monitor, log *persist.Logger, bench bool) *SyncReader {
	return &SyncReader{c: newCore(drive, pool, health, log, bench)}
}

// EnableStats turns on per-plot throughput logging.
func (r *SyncReader) EnableStats(enabled bool) { r.c.stats = enabled }

// Run scans the drive for round on a locked OS thread.
func (r *SyncReader) Run(ctx context.Context, round Round) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return r.c.run(ctx, round)
}

// Wakeup performs the between-rounds random seek.
func (r *SyncReader) Wakeup() { r.c.wakeup() }
