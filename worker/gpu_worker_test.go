package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/cpuflags"
	"github.com/signum-network/gopoc-miner/poc"
)

// nullDevice is the only Kernel implementation in this repository. It
// scores scoops using the same host-side cpuflags.Hash CPUWorker uses,
// standing in for a real OpenCL device in these tests.
type nullDevice struct {
	failNext bool
}

func (d *nullDevice) Name() string   { return "null" }
func (d *nullDevice) Kernel() Kernel { return d }

func (d *nullDevice) Score(ctx context.Context, gensig [32]byte, scoops []byte, scoopCount uint64) (uint64, uint64, error) {
	if d.failNext {
		d.failNext = false
		return 0, 0, errors.New("simulated device failure")
	}

	message := make([]byte, 32+poc.ScoopSize)
	copy(message[:32], gensig[:])

	var best uint64
	var bestIdx uint64
	found := false
	for i := uint64(0); i < scoopCount; i++ {
		copy(message[32:], scoops[i*poc.ScoopSize:(i+1)*poc.ScoopSize])
		digest := cpuflags.Hash(message)
		v := deadlineFromDigest(digest[:])
		if !found || v < best {
			found = true
			best = v
			bestIdx = i
		}
	}
	return best, bestIdx, nil
}

func TestGPUWorkerEmitsCandidateMatchingCPUWorker(t *testing.T) {
	meta := poc.BufferMeta{
		AccountID:          3,
		StartNonceInBuffer: 50,
		NonceCount:         4,
		Height:             10,
		BaseTarget:         2,
	}

	build := func() *bufpool.Pool {
		pool := bufpool.NewPool(1, int(4*poc.ScoopSize), 512, false)
		fillBuffer(t, pool, meta, func(i uint64, scoop []byte) {
			for j := range scoop {
				scoop[j] = byte(i*7 + 1)
			}
		})
		return pool
	}

	cpuPool := build()
	cw := NewCPUWorker(cpuPool, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go cw.Run(ctx)
	var cpuCand poc.Candidate
	select {
	case cpuCand = <-cw.Candidates():
	case <-time.After(time.Second):
		t.Fatal("cpu worker timed out")
	}

	gpuPool := build()
	gw := NewGPUWorker(gpuPool, &nullDevice{}, nil)
	gctx, gcancel := context.WithTimeout(context.Background(), time.Second)
	defer gcancel()
	go gw.Run(gctx)
	var gpuCand poc.Candidate
	select {
	case gpuCand = <-gw.Candidates():
	case <-time.After(time.Second):
		t.Fatal("gpu worker timed out")
	}

	if cpuCand != gpuCand {
		t.Fatalf("cpu and gpu workers disagree: %+v vs %+v", cpuCand, gpuCand)
	}
}

func TestGPUWorkerDropsBufferOnDeviceError(t *testing.T) {
	pool := bufpool.NewPool(1, int(2*poc.ScoopSize), 512, false)
	meta := poc.BufferMeta{NonceCount: 2, Height: 1, BaseTarget: 1}
	fillBuffer(t, pool, meta, func(uint64, []byte) {})

	dev := &nullDevice{failNext: true}
	w := NewGPUWorker(pool, dev, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	select {
	case cand, ok := <-w.Candidates():
		if ok {
			t.Fatalf("expected no candidate after device failure, got %+v", cand)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestGPUWorkerReturnsBufferAfterDeviceError(t *testing.T) {
	pool := bufpool.NewPool(1, int(poc.ScoopSize), 512, false)
	meta := poc.BufferMeta{NonceCount: 1, Height: 1, BaseTarget: 1}
	fillBuffer(t, pool, meta, func(uint64, []byte) {})

	dev := &nullDevice{failNext: true}
	w := NewGPUWorker(pool, dev, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	buf, err := pool.GetEmpty()
	if err != nil {
		t.Fatalf("expected buffer returned to empty pool after device error: %v", err)
	}
	pool.PutEmpty(buf)
}
