package worker

import (
	"context"
	"testing"
	"time"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/poc"
)

func fillBuffer(t *testing.T, pool *bufpool.Pool, meta poc.BufferMeta, fill func(i uint64, scoop []byte)) {
	t.Helper()
	buf, err := pool.GetEmpty()
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < meta.NonceCount; i++ {
		fill(i, buf.Data[i*poc.ScoopSize:(i+1)*poc.ScoopSize])
	}
	buf.Meta = meta
	if err := pool.PutFilled(buf); err != nil {
		t.Fatal(err)
	}
}

func TestCPUWorkerEmitsSingleBestCandidatePerBuffer(t *testing.T) {
	pool := bufpool.NewPool(1, int(4*poc.ScoopSize), 512, false)
	meta := poc.BufferMeta{
		AccountID:          7,
		StartNonceInBuffer: 100,
		NonceCount:         4,
		Height:             500,
		BaseTarget:         10,
	}
	fillBuffer(t, pool, meta, func(i uint64, scoop []byte) {
		for j := range scoop {
			scoop[j] = byte(i)
		}
	})

	w := NewCPUWorker(pool, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case cand := <-w.Candidates():
		if cand.Height != meta.Height {
			t.Fatalf("expected height %d, got %d", meta.Height, cand.Height)
		}
		if cand.AccountID != meta.AccountID {
			t.Fatalf("expected account %d, got %d", meta.AccountID, cand.AccountID)
		}
		if cand.Nonce < meta.StartNonceInBuffer || cand.Nonce >= meta.StartNonceInBuffer+meta.NonceCount {
			t.Fatalf("nonce %d out of buffer range", cand.Nonce)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for candidate")
	}

	cancel()
	<-done
}

func TestCPUWorkerSkipsBufferWithNoNonces(t *testing.T) {
	pool := bufpool.NewPool(1, int(poc.ScoopSize), 512, false)
	meta := poc.BufferMeta{NonceCount: 0, Height: 1, BaseTarget: 1}
	fillBuffer(t, pool, meta, func(uint64, []byte) {})

	w := NewCPUWorker(pool, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go w.Run(ctx)

	select {
	case cand, ok := <-w.Candidates():
		if ok {
			t.Fatalf("expected no candidate for empty buffer, got %+v", cand)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCPUWorkerReturnsBufferToEmptyPool(t *testing.T) {
	pool := bufpool.NewPool(1, int(2*poc.ScoopSize), 512, false)
	meta := poc.BufferMeta{NonceCount: 2, Height: 1, BaseTarget: 1}
	fillBuffer(t, pool, meta, func(uint64, []byte) {})

	w := NewCPUWorker(pool, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go w.Run(ctx)

	select {
	case <-w.Candidates():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for candidate")
	}

	buf, err := pool.GetEmpty()
	if err != nil {
		t.Fatalf("expected buffer to be returned to empty pool: %v", err)
	}
	pool.PutEmpty(buf)
}

func TestCPUWorkerStopsOnContextCancel(t *testing.T) {
	pool := bufpool.NewPool(1, int(poc.ScoopSize), 512, false)
	w := NewCPUWorker(pool, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
