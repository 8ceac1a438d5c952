// Package reader streams the current round's scoop bytes off each drive's
// plots, in sector-aligned chunks, into buffer-pool buffers. It follows
// original_source/src/reader.rs and plot.rs: compute the round's scoop
// offset once, round the seek address down to the sector size, track the
// resulting intra-sector prefix, and read forward in fixed-size chunks
// until the plot's scoop region is exhausted.
package reader

import (
	"context"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/diskhealth"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
	"github.com/signum-network/gopoc-miner/registry"
)

// Round is the read plan the Miner Controller hands to a drive's reader at
// the start of every round.
type Round struct {
	RoundID             uint64
	Height              uint64
	BaseTarget          uint64
	GenerationSignature [32]byte
	Scoop               uint32
}

// Interface is what the Miner Controller depends on for a drive's reader.
// Two implementations exist (SyncReader, TaskReader); both must produce
// identical BufferMeta sequences for the same Round.
type Interface interface {
	Run(ctx context.Context, round Round) error

	// EnableStats turns on per-plot throughput logging.
	EnableStats(enabled bool)

	// Wakeup performs a random seek on the drive between rounds, to keep
	// the underlying device warm and smoke-test liveness.
	Wakeup()
}

// core holds everything both reader implementations share: the drive to
// scan, the buffer pool to fill, and the shared collaborators used for
// error accounting and stats.
type core struct {
	drive   registry.Drive
	pool   *bufpool.Pool
	health *diskhealth.Monitor
	log    *persist.Logger
	stats  bool
	bench  bool
}

// newCore builds the shared reader state. The chunk size read per I/O is
// whatever size the buffer pool's buffers were allocated with.
func newCore(drive registry.Drive, pool *bufpool.Pool, health *diskhealth.Monitor, log *persist.Logger, bench bool) *core {
	return &core{drive: drive, pool: pool, health: health, log: log, bench: bench}
}

func (c *core) logf(format string, args ...interface{}) {
	if c.log == nil {
		return
	}
	c.log.Printf(format, args...)
}

// run scans every plot on the drive for round, checking cancelled between
// chunks. It returns nil when the drive finishes normally or is cancelled;
// per-plot I/O errors are recorded and do not stop the drive's scan.
func (c *core) run(ctx context.Context, round Round) error {
	for i, plot := range c.drive.Plots {
		if isCancelled(ctx) {
			return nil
		}
		last := i == len(c.drive.Plots)-1
		if err := c.readPlot(ctx, plot, round, last); err != nil {
			c.health.RecordFailure(c.drive.ID)
			c.logf("read error on drive %s plot %s: %v", c.drive.ID, plot.Meta.Name, err)
			continue
		}
	}
	return nil
}

func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// readPlot reads one plot's scoop region for round, chunk by chunk, into
// buffers drawn from the pool.
func (c *core) readPlot(ctx context.Context, plot registry.Plot, round Round, lastPlot bool) error {
	var f *os.File
	var err error
	if !c.bench {
		f, err = openPlot(plot.Path, c.drive.DirectIOEligible())
		if err != nil {
			return err
		}
		defer f.Close()
	}

	seekAddr := uint64(round.Scoop) * plot.Meta.Nonces * poc.ScoopSize
	prefix := uint64(0)
	if c.drive.DirectIOEligible() {
		prefix = roundSeekAddr(&seekAddr, c.drive.SectorSize)
	}

	total := plot.Meta.Nonces * poc.ScoopSize
	var readOffset uint64
	var bytesRead uint64
	start := time.Now()

	for readOffset < total {
		if isCancelled(ctx) {
			return nil
		}

		buf, err := c.pool.GetEmpty()
		if err != nil {
			return nil
		}

		remaining := total - readOffset
		toRead := uint64(len(buf.Data))
		finishedPlot := false
		if toRead >= remaining {
			toRead = remaining
			if c.drive.DirectIOEligible() {
				if r := toRead % c.drive.SectorSize; r != 0 {
					toRead -= r
				}
			}
			finishedPlot = true
		}

		startNonce := plot.Meta.StartNonce + readOffset/poc.ScoopSize

		if !c.bench {
			if _, err := f.Seek(int64(seekAddr+prefix+readOffset), io.SeekStart); err != nil {
				c.pool.PutEmpty(buf)
				return err
			}
			if _, err := io.ReadFull(f, buf.Data[:toRead]); err != nil {
				c.pool.PutEmpty(buf)
				return err
			}
		} else {
			for i := range buf.Data[:toRead] {
				buf.Data[i] = 0
			}
		}

		bytesRead += toRead
		readOffset += toRead

		buf.Meta = poc.BufferMeta{
			PlotID:              plot.Meta.Name,
			AccountID:           plot.Meta.AccountID,
			StartNonceInBuffer:  startNonce,
			NonceCount:          toRead / poc.ScoopSize,
			Height:              round.Height,
			BaseTarget:          round.BaseTarget,
			GenerationSignature: round.GenerationSignature,
			FinishedFlag:        finishedPlot && lastPlot,
		}

		if err := c.pool.PutFilled(buf); err != nil {
			return nil
		}

		if toRead == 0 {
			break
		}
	}

	c.health.RecordSuccess(c.drive.ID)
	if c.stats {
		elapsed := time.Since(start)
		mibs := float64(bytesRead) / 1024 / 1024 / elapsed.Seconds()
		c.logf("drive %s plot %s: read %d bytes in %s (%.1f MiB/s)", c.drive.ID, plot.Meta.Name, bytesRead, elapsed, mibs)
	}
	return nil
}

// roundSeekAddr aligns seekAddr down to the nearest multiple of
// sectorSize, returning the discarded remainder as the intra-sector
// prefix, matching plot.rs's round_seek_addr.
func roundSeekAddr(seekAddr *uint64, sectorSize uint64) uint64 {
	r := *seekAddr % sectorSize
	if r != 0 {
		*seekAddr -= r
	}
	return r
}

// wakeup performs a random seek on the drive's first plot between rounds,
// to keep the underlying device warm and smoke-test liveness. Failures are
// logged and otherwise ignored, matching reader.rs's wakeup/seek_random.
func (c *core) wakeup() {
	if c.bench || len(c.drive.Plots) == 0 {
		return
	}
	plot := c.drive.Plots[0]
	f, err := openPlot(plot.Path, c.drive.DirectIOEligible())
	if err != nil {
		c.logf("wakeup seek failed to open drive %s: %v", c.drive.ID, err)
		return
	}
	defer f.Close()

	randScoop := uint64(rand.Intn(poc.ScoopCount))
	seekAddr := randScoop * plot.Meta.Nonces * poc.ScoopSize
	if c.drive.DirectIOEligible() {
		roundSeekAddr(&seekAddr, c.drive.SectorSize)
	}
	if _, err := f.Seek(int64(seekAddr), io.SeekStart); err != nil {
		c.logf("wakeup seek failed on drive %s: %v", c.drive.ID, err)
	}
}
