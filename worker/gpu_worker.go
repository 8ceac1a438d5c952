package worker

import (
	"context"
	"encoding/binary"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
)

// Kernel scores one host-resident buffer on a device and writes the winning
// deadline and its offset within the buffer back to the host. It is the
// narrow surface GPUWorker needs from whatever OpenCL binding a build wires
// in; no such binding ships in this repository (see DESIGN.md), so the only
// Kernel implementation in this tree is nullDevice's test double.
type Kernel interface {
	// Score hashes generationSignature with each of the scoopCount scoops
	// in scoops (the buffer's scoop bytes, back to back) and returns the
	// lowest deadlineRaw found together with the scoop index it came from.
	Score(ctx context.Context, generationSignature [32]byte, scoops []byte, scoopCount uint64) (deadlineRaw uint64, index uint64, err error)
}

// Device names one physical accelerator and exposes the Kernel bound to it.
// A device that errors on one buffer is used again for the next one;
// GPUWorker itself only ever touches one Device.
type Device interface {
	Name() string
	Kernel() Kernel
}

// GPUWorker has the same buffer-in, candidate-out contract as CPUWorker but
// delegates the scoring loop to a Device. A failure scoring one buffer is
// logged and the buffer is dropped; the device stays in rotation for the
// next buffer, matching the source's per-buffer error isolation for GPU
// workers.
type GPUWorker struct {
	pool   *bufpool.Pool
	device Device
	log    *persist.Logger
	guard  poisonableMutex

	out chan poc.Candidate
}

// NewGPUWorker builds a GPUWorker draining pool through device.
func NewGPUWorker(pool *bufpool.Pool, device Device, log *persist.Logger) *GPUWorker {
	return &GPUWorker{pool: pool, device: device, log: log, out: make(chan poc.Candidate, 1)}
}

// Candidates returns the channel GPUWorker publishes its per-buffer best
// candidate on. The channel is closed when Run returns.
func (w *GPUWorker) Candidates() <-chan poc.Candidate {
	return w.out
}

// Run drains buffers until ctx is cancelled or the pool is closed.
func (w *GPUWorker) Run(ctx context.Context) error {
	defer close(w.out)
	kernel := w.device.Kernel()

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

		cand, ok := w.scoreBuffer(ctx, kernel, buf)

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

func (w *GPUWorker) scoreBuffer(ctx context.Context, kernel Kernel, buf *bufpool.Buffer) (poc.Candidate, bool) {
	meta, ok := buf.Meta.(poc.BufferMeta)
	if !ok || meta.NonceCount == 0 {
		return poc.Candidate{}, false
	}

	var (
		deadlineRaw uint64
		index       uint64
		scoreErr    error
	)

	panicked := w.guard.withLock(w.log, func() {
		deadlineRaw, index, scoreErr = kernel.Score(ctx, meta.GenerationSignature, buf.Data[:meta.NonceCount*poc.ScoopSize], meta.NonceCount)
	})

	if panicked {
		if w.log != nil {
			w.log.Println("gpu device", w.device.Name(), "kernel panicked, dropping buffer")
		}
		return poc.Candidate{}, false
	}

	if scoreErr != nil {
		if w.log != nil {
			w.log.Println("gpu device", w.device.Name(), "failed to score buffer, dropping:", scoreErr)
		}
		return poc.Candidate{}, false
	}

	nonce := poc.SaturatingAdd(meta.StartNonceInBuffer, index)

	return poc.Candidate{
		Height:      meta.Height,
		AccountID:   meta.AccountID,
		Nonce:       nonce,
		DeadlineRaw: deadlineRaw,
		Deadline:    poc.ComputeDeadline(deadlineRaw, meta.BaseTarget),
	}, true
}

// deadlineFromDigest extracts the deadline_raw value from a scoop hash's
// first eight bytes, little-endian, matching the same rule CPUWorker's
// on-host hashing uses. Kernel implementations that hash on-device rather
// than delegating to cpuflags can reuse this to interpret their own digest
// bytes.
func deadlineFromDigest(digest []byte) uint64 {
	return binary.LittleEndian.Uint64(digest[:8])
}
