// Package puzzlesource polls the upstream for mining info and publishes
// each strictly-increasing-height Puzzle it observes. It is the miner's
// only source of new rounds; the Miner Controller never talks to
// httpupstream directly. Grounded on node/api/client's polling callers and
// spec.md's mining-info polling requirements.
package puzzlesource

import (
	"context"
	"time"

	"github.com/signum-network/gopoc-miner/config"
	"github.com/signum-network/gopoc-miner/httpupstream"
	"github.com/signum-network/gopoc-miner/metrics"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
)

// Source polls transport at the configured interval and republishes new
// puzzles on its output channel.
type Source struct {
	transport httpupstream.Transport
	interval  time.Duration
	metrics   *metrics.Metrics
	log       *persist.Logger

	out     chan poc.Puzzle
	current poc.Puzzle
}

// New builds a Source polling transport at the interval cfg specifies.
func New(transport httpupstream.Transport, cfg config.Settings, m *metrics.Metrics, log *persist.Logger) *Source {
	return &Source{
		transport: transport,
		interval:  cfg.MiningInfoInterval(),
		metrics:   m,
		log:       log,
		out:       make(chan poc.Puzzle, 1),
	}
}

// Puzzles returns the channel new puzzles are published on. The channel is
// closed when Run returns.
func (s *Source) Puzzles() <-chan poc.Puzzle {
	return s.out
}

func (s *Source) logf(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// Run polls until ctx is cancelled. A poll that fails is a Network error:
// it is logged and counted, and the current puzzle is retained rather than
// the miner stalling entirely. A poll that decodes a puzzle no better than
// the current one is ignored without being logged or counted.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Source) poll(ctx context.Context) {
	info, err := s.transport.GetMiningInfo(ctx)
	if err != nil {
		s.logf("puzzlesource: getMiningInfo failed: %v", err)
		if s.metrics != nil {
			s.metrics.RecordNetworkError()
		}
		return
	}

	p := poc.Puzzle{
		Height:              info.Height,
		GenerationSignature: info.GenerationSignature,
		BaseTarget:          info.BaseTarget,
		TargetDeadline:      info.TargetDeadline,
	}
	if !p.Supersedes(s.current) {
		return
	}
	s.current = p

	select {
	case s.out <- p:
	case <-ctx.Done():
	}
}
