package reader

import (
	"context"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/diskhealth"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/registry"
)

// TaskReader is the asynchronous-task-per-drive implementation: it runs as
// an ordinary goroutine cooperating with the scheduler rather than pinning
// an OS thread, matching original_source's async_io feature's tokio-task
// mode. Its cancellation and chunking behavior is otherwise identical to
// SyncReader's; both pass the same scenario suite.
type TaskReader struct {
	c *core
}

// NewTaskReader constructs a TaskReader for one drive.
func NewTaskReader(drive registry.Drive, pool *bufpool.Pool, health *diskhealth.Monitor, log *persist.Logger, bench bool) *TaskReader {
	return &TaskReader{c: newCore(drive, pool, health, log, bench)}
}

// EnableStats turns on per-plot throughput logging.
func (r *TaskReader) EnableStats(enabled bool) { r.c.stats = enabled }

// Run scans the drive for round as a plain goroutine.
func (r *TaskReader) Run(ctx context.Context, round Round) error {
	return r.c.run(ctx, round)
}

// Wakeup performs the between-rounds random seek.
func (r *TaskReader) Wakeup() { r.c.wakeup() }
