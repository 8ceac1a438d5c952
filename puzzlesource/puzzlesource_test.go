package puzzlesource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signum-network/gopoc-miner/config"
	"github.com/signum-network/gopoc-miner/httpupstream"
	"github.com/signum-network/gopoc-miner/metrics"
)

type fakeTransport struct {
	infos []httpupstream.MiningInfo
	idx   atomic.Int32
	err   error
}

func (f *fakeTransport) GetMiningInfo(ctx context.Context) (httpupstream.MiningInfo, error) {
	if f.err != nil {
		return httpupstream.MiningInfo{}, f.err
	}
	i := f.idx.Add(1) - 1
	if int(i) >= len(f.infos) {
		i = int32(len(f.infos) - 1)
	}
	return f.infos[i], nil
}

func (f *fakeTransport) SubmitNonce(context.Context, httpupstream.SubmitNonceRequest) (httpupstream.SubmitNonceResponse, error) {
	return httpupstream.SubmitNonceResponse{}, nil
}

func fastConfig() config.Settings {
	cfg := config.Default()
	cfg.MiningInfoIntervalMs = config.MinMiningInfoIntervalMs
	return cfg
}

func TestSourcePublishesFirstPuzzleImmediately(t *testing.T) {
	transport := &fakeTransport{infos: []httpupstream.MiningInfo{{Height: 5}}}
	s := New(transport, fastConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case p := <-s.Puzzles():
		if p.Height != 5 {
			t.Fatalf("expected height 5, got %d", p.Height)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first puzzle")
	}
}

func TestSourceSkipsNonIncreasingHeight(t *testing.T) {
	transport := &fakeTransport{infos: []httpupstream.MiningInfo{{Height: 5}, {Height: 5}, {Height: 5}}}
	s := New(transport, fastConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-s.Puzzles():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first puzzle")
	}

	select {
	case p := <-s.Puzzles():
		t.Fatalf("expected no republish of same height, got %+v", p)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSourceRecordsNetworkErrorOnFailure(t *testing.T) {
	transport := &fakeTransport{err: errors.New("boom")}
	m := metrics.NewMetrics()
	s := New(transport, fastConfig(), m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.Snapshot().NetworkErrors > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected at least one network error to be recorded")
}
