// Package controller runs the Miner Controller: the state machine that
// turns an accepted Puzzle into a scan across every drive, tracks the best
// qualifying candidate per account as workers report them, and hands
// qualifying candidates to the Submitter. It follows the round lifecycle
// spec.md describes (accept puzzle, cancel prior scan, dispatch
// readers, collect candidates, complete) rendered as goroutines
// coordinated through a mutex-guarded state struct, the same shape the
// corpus uses for its own single-writer-many-reader state (compare
// modules/consensus's use of a single change-processing goroutine guarded
// by a lock held only across state mutation, never I/O).
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/signum-network/gopoc-miner/config"
	"github.com/signum-network/gopoc-miner/crypto/shabal"
	"github.com/signum-network/gopoc-miner/metrics"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
	"github.com/signum-network/gopoc-miner/reader"
	"github.com/signum-network/gopoc-miner/submitter"
	minersync "github.com/signum-network/gopoc-miner/sync"
)

// State is the Miner Controller's coarse lifecycle stage.
type State int

const (
	Idle State = iota
	Scanning
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Controller owns the active round and dispatches it across every drive's
// reader. One Controller runs for the process lifetime; a new Puzzle
// replaces the active round rather than a new Controller being built.
type Controller struct {
	cfg     config.Settings
	log     *persist.Logger
	metrics *metrics.Metrics
	submit  *submitter.Submitter
	readers []reader.Interface
	tg      *minersync.ThreadGroup

	mu          sync.Mutex
	state       State
	round       poc.RoundState
	nextRoundID uint64
	cancelRound context.CancelFunc
	bestByAcct  map[uint64]uint64
}

// New builds a Controller that dispatches accepted puzzles across readers.
// tg may be nil, in which case the readers it dispatches are tracked only by
// the Controller's own per-round WaitGroup and not by any process-wide
// shutdown coordinator.
func New(cfg config.Settings, log *persist.Logger, m *metrics.Metrics, submit *submitter.Submitter, readers []reader.Interface, tg *minersync.ThreadGroup) *Controller {
	return &Controller{
		cfg:     cfg,
		log:     log,
		metrics: m,
		submit:  submit,
		readers: readers,
		tg:      tg,
		state:   Idle,
	}
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}

// State reports the Controller's current lifecycle stage.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Round returns a copy of the currently active (or most recently completed)
// round's state.
func (c *Controller) Round() poc.RoundState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

// Run drives the Controller from puzzles and candidates until ctx is
// cancelled. puzzles delivers strictly-increasing-height Puzzles (Puzzle
// Source's contract); candidates delivers every CPU and GPU worker's
// per-buffer best, fanned into one channel by the caller.
func (c *Controller) Run(ctx context.Context, puzzles <-chan poc.Puzzle, candidates <-chan poc.Candidate) error {
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.cancelRound != nil {
				c.cancelRound()
			}
			c.mu.Unlock()
			return nil

		case p, ok := <-puzzles:
			if !ok {
				puzzles = nil
				continue
			}
			c.acceptPuzzle(ctx, p)

		case cand, ok := <-candidates:
			if !ok {
				candidates = nil
				continue
			}
			c.considerCandidate(cand)
		}
	}
}

// acceptPuzzle applies §3's monotone-height rule, cancels the prior round's
// readers, and dispatches a fresh scan for p.
func (c *Controller) acceptPuzzle(ctx context.Context, p poc.Puzzle) {
	c.mu.Lock()
	current := poc.Puzzle{Height: c.round.Height}
	if !p.Supersedes(current) {
		c.mu.Unlock()
		c.logf("controller: ignoring non-superseding puzzle at height %d (current %d)", p.Height, c.round.Height)
		return
	}

	if c.cancelRound != nil {
		c.cancelRound()
		if c.state == Scanning && c.metrics != nil {
			c.metrics.RecordRoundFailure()
		}
	}

	c.nextRoundID++
	roundID := c.nextRoundID
	rctx, cancel := context.WithCancel(ctx)
	c.cancelRound = cancel
	c.state = Scanning
	c.bestByAcct = make(map[uint64]uint64)
	c.round = poc.RoundState{
		RoundID:             roundID,
		Height:              p.Height,
		BaseTarget:          p.BaseTarget,
		GenerationSignature: p.GenerationSignature,
		TargetDeadline:      p.TargetDeadline,
		StartedAt:           time.Now(),
	}
	c.mu.Unlock()

	scoop := shabal.ScoopNumber(p.GenerationSignature, p.Height)
	round := reader.Round{
		RoundID:             roundID,
		Height:              p.Height,
		BaseTarget:          p.BaseTarget,
		GenerationSignature: p.GenerationSignature,
		Scoop:               uint32(scoop),
	}

	if c.submit != nil {
		c.submit.SetRound(p.Height, c.cfg.EffectiveTarget(0, p.TargetDeadline))
	}

	c.logf("controller: round %d started at height %d, scoop %d, %d drives", roundID, p.Height, scoop, len(c.readers))

	var wg sync.WaitGroup
	for _, rd := range c.readers {
		wg.Add(1)
		if c.tg != nil {
			if err := c.tg.Add(); err != nil {
				// Shutdown is already underway; skip dispatching this
				// drive rather than racing a stopped ThreadGroup.
				wg.Done()
				continue
			}
		}
		go func(rd reader.Interface) {
			defer wg.Done()
			if c.tg != nil {
				defer c.tg.Done()
			}
			if err := rd.Run(rctx, round); err != nil {
				c.logf("controller: reader error in round %d: %v", roundID, err)
			}
		}(rd)
	}

	go func() {
		wg.Wait()
		c.completeRound(roundID)
	}()
}

// considerCandidate updates the round's best-tracking state and forwards
// cand to the Submitter if it qualifies under the account's effective
// target. Candidates from a superseded round are silently dropped: their
// height no longer matches the active round.
func (c *Controller) considerCandidate(cand poc.Candidate) {
	c.mu.Lock()
	if cand.Height != c.round.Height {
		c.mu.Unlock()
		return
	}

	target := c.cfg.EffectiveTarget(cand.AccountID, c.round.TargetDeadline)
	if cand.Deadline > target {
		c.mu.Unlock()
		return
	}

	prevBest, hasPrev := c.bestByAcct[cand.AccountID]
	improves := !hasPrev || cand.Deadline < prevBest
	if c.cfg.SubmitOnlyBest && !improves {
		c.mu.Unlock()
		return
	}
	c.bestByAcct[cand.AccountID] = cand.Deadline

	if c.round.Best == nil || cand.Deadline < c.round.Best.Deadline {
		best := cand
		c.round.Best = &best
	}
	c.mu.Unlock()

	if c.submit != nil {
		c.submit.TryEnqueue(poc.SubmissionJob{Candidate: cand})
	}
}

// completeRound marks roundID Completed if it is still the active round;
// a round that was superseded before its readers drained is a no-op here
// since acceptPuzzle already recorded its failure. On a genuine completion
// every reader gets a between-rounds wakeup seek, to keep drives that just
// finished a long sequential scan from idling into a spun-down state before
// the next round starts.
func (c *Controller) completeRound(roundID uint64) {
	c.mu.Lock()
	if c.round.RoundID != roundID || c.state != Scanning {
		c.mu.Unlock()
		return
	}
	c.state = Completed
	elapsed := time.Since(c.round.StartedAt)
	if c.metrics != nil {
		c.metrics.RecordRoundComplete(elapsed)
	}
	c.logf("controller: round %d completed in %s, best deadline %v", roundID, elapsed, c.round.Best)
	c.mu.Unlock()

	for _, rd := range c.readers {
		rd.Wakeup()
	}
}
