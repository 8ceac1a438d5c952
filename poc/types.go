// Package poc holds the core data types shared by every stage of the
// mining pipeline: plot metadata, mining puzzles, scoop buffers, nonce
// candidates, round state, and submission jobs. It mirrors the small
// plain-struct style of the corpus's own low-level types packages (compare
// types/ in the teacher) rather than growing behavior here; behavior lives
// in the packages that own each pipeline stage.
package poc

import (
	"math"
	"time"
)

// ScoopCount is the fixed number of scoops packed into every plot nonce.
const ScoopCount = 4096

// ScoopSize is the byte size of a single scoop.
const ScoopSize = 64

// NonceSize is the total byte size of one nonce's worth of scoops.
const NonceSize = ScoopCount * ScoopSize

// Meta identifies a plot file by the three fields encoded in its filename
// and carries the file's on-disk name for logging. Grounded on
// original_source/src/plot.rs's Meta struct.
type Meta struct {
	AccountID  uint64
	StartNonce uint64
	Nonces     uint64
	Name       string
}

// End returns the exclusive upper bound of the nonce range this plot
// covers.
func (m Meta) End() uint64 {
	return m.StartNonce + m.Nonces
}

// ExpectedSize returns the file size a plot with these dimensions must
// have.
func (m Meta) ExpectedSize() uint64 {
	return m.Nonces * NonceSize
}

// OverlapsWith reports whether m and other, assumed to belong to the same
// drive and account, share any nonce.
func (m Meta) OverlapsWith(other Meta) bool {
	return m.StartNonce < other.End() && other.StartNonce < m.End()
}

// Puzzle is the mining target announced by the upstream for one blockchain
// height (§3, §6).
type Puzzle struct {
	Height              uint64
	GenerationSignature [32]byte
	BaseTarget          uint64
	TargetDeadline      uint64
}

// Supersedes reports whether p has a strictly greater height than current,
// per §3's monotone-height rule.
func (p Puzzle) Supersedes(current Puzzle) bool {
	return p.Height > current.Height
}

// BufferMeta is the metadata a Reader attaches to a filled scoop buffer so
// downstream workers know how to interpret it without touching the drive
// again.
type BufferMeta struct {
	PlotID              string
	AccountID           uint64
	StartNonceInBuffer  uint64
	NonceCount          uint64
	Height              uint64
	BaseTarget          uint64
	GenerationSignature [32]byte
	FinishedFlag        bool
}

// Candidate is a nonce a worker believes may be a qualifying deadline for
// the current round.
type Candidate struct {
	Height     uint64
	AccountID  uint64
	Nonce      uint64
	DeadlineRaw uint64
	Deadline    uint64
}

// ComputeDeadline applies §3's saturating-division rule: dividing by a zero
// base target yields the maximum possible deadline rather than panicking or
// producing an artificially good result.
func ComputeDeadline(deadlineRaw, baseTarget uint64) uint64 {
	if baseTarget == 0 {
		return math.MaxUint64
	}
	return deadlineRaw / baseTarget
}

// SaturatingAdd adds b to a without wrapping past the maximum uint64 value,
// matching the source's use of checked/saturating arithmetic on
// network-derived offsets (§7).
func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// RoundState is the mutable state of one active round. A new RoundState
// replaces the old one atomically on puzzle change; it is never mutated
// piecemeal outside of the Miner Controller's compare-and-swap of Best.
type RoundState struct {
	RoundID       uint64
	Height        uint64
	BaseTarget    uint64
	GenerationSignature [32]byte
	TargetDeadline      uint64
	Best          *Candidate
	ScannedNonces uint64
	StartedAt     time.Time
}

// SubmissionJob tracks one candidate through the Submitter's retry loop.
type SubmissionJob struct {
	Candidate  Candidate
	Attempts   int
	LastError  error
}

// Stale reports whether j should be abandoned because a new round has
// started and j's deadline no longer qualifies under the new round's
// target, per §3/§4.7.
func (j SubmissionJob) Stale(currentHeight uint64, effectiveTarget uint64) bool {
	if j.Candidate.Height == currentHeight {
		return false
	}
	return j.Candidate.Deadline > effectiveTarget
}
