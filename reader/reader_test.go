package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/diskhealth"
	"github.com/signum-network/gopoc-miner/poc"
	"github.com/signum-network/gopoc-miner/registry"
)

func writeTestPlot(t *testing.T, dir string, meta poc.Meta) string {
	t.Helper()
	path := filepath.Join(dir, meta.FileName())
	data := make([]byte, meta.ExpectedSize())
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func drainFilled(t *testing.T, pool *bufpool.Pool, n int) []*bufpool.Buffer {
	t.Helper()
	var out []*bufpool.Buffer
	for i := 0; i < n; i++ {
		b, err := pool.GetFilled()
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, b)
	}
	return out
}

func TestSyncReaderSinglePlotSingleRound(t *testing.T) {
	dir := t.TempDir()
	meta := poc.Meta{AccountID: 123, StartNonce: 0, Nonces: 4}
	path := writeTestPlot(t, dir, meta)

	drive := registry.Drive{
		ID:         "disk0",
		SectorSize: 512,
		BusType:    "usb",
		Plots:      []registry.Plot{{Meta: meta, Path: path}},
	}
	bufSize := int(meta.Nonces * poc.ScoopSize)
	pool := bufpool.NewPool(2, bufSize, int(drive.SectorSize), false)
	health := diskhealth.NewMonitor()

	r := NewSyncReader(drive, pool, health, nil, false)
	if err := r.Run(context.Background(), Round{Height: 1000}); err != nil {
		t.Fatal(err)
	}

	filled := drainFilled(t, pool, 1)
	bm := filled[0].Meta.(poc.BufferMeta)
	if !bm.FinishedFlag {
		t.Fatal("expected last buffer of last plot to carry finished flag")
	}
	if bm.NonceCount != meta.Nonces {
		t.Fatalf("expected %d nonces in buffer, got %d", meta.Nonces, bm.NonceCount)
	}
	if bm.StartNonceInBuffer != meta.StartNonce {
		t.Fatalf("expected start nonce %d, got %d", meta.StartNonce, bm.StartNonceInBuffer)
	}

	snap := health.Snapshot("disk0")
	if snap.SuccessfulReads != 1 {
		t.Fatalf("expected 1 successful read, got %d", snap.SuccessfulReads)
	}
}

func TestSyncAndTaskReaderProduceIdenticalMetadata(t *testing.T) {
	dir := t.TempDir()
	meta := poc.Meta{AccountID: 5, StartNonce: 10, Nonces: 8}
	path := writeTestPlot(t, dir, meta)
	drive := registry.Drive{ID: "d", SectorSize: 512, BusType: "usb", Plots: []registry.Plot{{Meta: meta, Path: path}}}
	bufSize := int(meta.Nonces * poc.ScoopSize)

	run := func(r Interface, pool *bufpool.Pool) poc.BufferMeta {
		if err := r.Run(context.Background(), Round{Height: 2000}); err != nil {
			t.Fatal(err)
		}
		b, err := pool.GetFilled()
		if err != nil {
			t.Fatal(err)
		}
		return b.Meta.(poc.BufferMeta)
	}

	pool1 := bufpool.NewPool(1, bufSize, int(drive.SectorSize), false)
	syncMeta := run(NewSyncReader(drive, pool1, diskhealth.NewMonitor(), nil, false), pool1)

	pool2 := bufpool.NewPool(1, bufSize, int(drive.SectorSize), false)
	taskMeta := run(NewTaskReader(drive, pool2, diskhealth.NewMonitor(), nil, false), pool2)

	if syncMeta != taskMeta {
		t.Fatalf("sync and task readers disagree: %+v vs %+v", syncMeta, taskMeta)
	}
}

func TestReaderRespectsCancellation(t *testing.T) {
	dir := t.TempDir()
	meta := poc.Meta{AccountID: 1, StartNonce: 0, Nonces: 4}
	path := writeTestPlot(t, dir, meta)
	drive := registry.Drive{ID: "d", SectorSize: 512, BusType: "usb", Plots: []registry.Plot{{Meta: meta, Path: path}}}

	pool := bufpool.NewPool(1, int(meta.Nonces*poc.ScoopSize), int(drive.SectorSize), false)
	r := NewSyncReader(drive, pool, diskhealth.NewMonitor(), nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx, Round{Height: 1}); err != nil {
		t.Fatal(err)
	}

	empty, filled := pool.Len()
	if empty != 1 || filled != 0 {
		t.Fatalf("expected no buffers consumed after immediate cancellation, got empty=%d filled=%d", empty, filled)
	}
}

func TestBenchmarkModeSkipsDisk(t *testing.T) {
	meta := poc.Meta{AccountID: 1, StartNonce: 0, Nonces: 2}
	drive := registry.Drive{ID: "bench", SectorSize: 512, BusType: "usb", Plots: []registry.Plot{{Meta: meta, Path: "/nonexistent"}}}
	pool := bufpool.NewPool(1, int(meta.Nonces*poc.ScoopSize), int(drive.SectorSize), false)

	r := NewSyncReader(drive, pool, diskhealth.NewMonitor(), nil, true)
	if err := r.Run(context.Background(), Round{Height: 1}); err != nil {
		t.Fatal(err)
	}
	filled := drainFilled(t, pool, 1)
	bm := filled[0].Meta.(poc.BufferMeta)
	if bm.NonceCount != meta.Nonces {
		t.Fatalf("expected benchmark buffer to still report %d nonces, got %d", meta.Nonces, bm.NonceCount)
	}
}
