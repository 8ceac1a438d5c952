// Package worker turns filled scoop buffers into nonce candidates. Two
// implementations share the same contract (drain a buffer-pool buffer, score
// every nonce in it, emit the single best Candidate, return the buffer to
// the empty pool): CPUWorker hashes scoops on the host CPU via cpuflags,
// GPUWorker hands the same scoring loop to a Device's Kernel (no OpenCL
// binding ships in this repository). Grounded on
// modules/host/contractmanager's worker-pool-over-a-channel shape (drain,
// process, return).
package worker

import (
	"context"
	"encoding/binary"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/cpuflags"
	"github.com/signum-network/gopoc-miner/diskhealth"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
)

// CPUWorker drains buffers from a pool and scores every nonce in each one
// using the process-wide cpuflags.Hash implementation.
type CPUWorker struct {
	pool   *bufpool.Pool
	health *diskhealth.Monitor
	log    *persist.Logger
	guard  poisonableMutex

	out chan poc.Candidate
}

// NewCPUWorker builds a CPUWorker draining pool and publishing candidates on
// the returned channel's writer side. health may be nil; a nil health
// monitor simply means hash-stage errors aren't attributed to a drive.
func NewCPUWorker(pool *bufpool.Pool, health *diskhealth.Monitor, log *persist.Logger) *CPUWorker {
	return &CPUWorker{pool: pool, health: health, log: log, out: make(chan poc.Candidate, 1)}
}

// Candidates returns the channel CPUWorker publishes its per-buffer best
// candidate on. The channel is closed when Run returns.
func (w *CPUWorker) Candidates() <-chan poc.Candidate {
	return w.out
}

// Run drains buffers until ctx is cancelled or the pool is closed. Each
// buffer yields at most one Candidate.
func (w *CPUWorker) Run(ctx context.Context) error {
	defer close(w.out)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		buf, err := w.pool.GetFilled()
		if err != nil {
			return nil
		}

		cand, ok := w.scoreBuffer(buf)

		if err := w.pool.PutEmpty(buf); err != nil {
			return nil
		}

		if !ok {
			continue
		}

		select {
		case w.out <- cand:
		case <-ctx.Done():
			return nil
		}
	}
}

// scoreBuffer computes the minimum deadline nonce in buf and reports it as a
// Candidate. It recovers from a panic in the hashing loop (a malformed
// buffer or a bad SIMD dispatch) rather than taking the whole worker down,
// matching the mutex-poison-recovery discipline used across the pipeline.
func (w *CPUWorker) scoreBuffer(buf *bufpool.Buffer) (poc.Candidate, bool) {
	meta, ok := buf.Meta.(poc.BufferMeta)
	if !ok {
		return poc.Candidate{}, false
	}

	var (
		bestDeadlineRaw uint64
		bestNonce       uint64
		found           bool
	)

	panicked := w.guard.withLock(w.log, func() {
		lanes := cpuflags.LaneWidth()
		messages := make([][]byte, meta.NonceCount)
		for i := uint64(0); i < meta.NonceCount; i++ {
			message := make([]byte, 32+poc.ScoopSize)
			copy(message[:32], meta.GenerationSignature[:])
			copy(message[32:], buf.Data[i*poc.ScoopSize:(i+1)*poc.ScoopSize])
			messages[i] = message
		}

		consider := func(nonce uint64, digest [32]byte) {
			deadlineRaw := binary.LittleEndian.Uint64(digest[:8])
			if !found || deadlineRaw < bestDeadlineRaw {
				found = true
				bestDeadlineRaw = deadlineRaw
				bestNonce = nonce
			}
		}

		i := uint64(0)
		for ; i+uint64(lanes) <= meta.NonceCount; i += uint64(lanes) {
			digests := cpuflags.HashBatch(messages[i : i+uint64(lanes)])
			for lane, digest := range digests {
				consider(meta.StartNonceInBuffer+i+uint64(lane), digest)
			}
		}
		for ; i < meta.NonceCount; i++ {
			consider(meta.StartNonceInBuffer+i, cpuflags.Hash(messages[i]))
		}
	})

	if w.health != nil && meta.PlotID != "" {
		if panicked {
			w.health.RecordFailure(meta.PlotID)
		} else {
			w.health.RecordSuccess(meta.PlotID)
		}
	}

	if !found {
		return poc.Candidate{}, false
	}

	return poc.Candidate{
		Height:      meta.Height,
		AccountID:   meta.AccountID,
		Nonce:       bestNonce,
		DeadlineRaw: bestDeadlineRaw,
		Deadline:    poc.ComputeDeadline(bestDeadlineRaw, meta.BaseTarget),
	}, true
}
