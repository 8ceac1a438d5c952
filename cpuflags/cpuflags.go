// Package cpuflags picks a Shabal hashing implementation to match the
// running CPU, once, for the lifetime of the process. The detection and
// dispatch-table pattern follows golang.org/x/sys/cpu's feature flags the
// way other codec-heavy Go code in the ecosystem uses them: probe once in an
// init-adjacent step, then swap a function variable rather than branching on
// every call.
package cpuflags

import (
	"sync"

	"golang.org/x/sys/cpu"

	"github.com/signum-network/gopoc-miner/crypto/shabal"
)

// Variant identifies a dispatch target. Only Scalar and SSE2 are real,
// distinct implementations in this repository; the wider vector variants
// are declared as first-class targets so a future assembly implementation
// slots in without changing the dispatch surface, but for now they fall
// back to Scalar.
type Variant string

const (
	VariantScalar  Variant = "scalar"
	VariantSSE2    Variant = "sse2"
	VariantAVX     Variant = "avx"
	VariantAVX2    Variant = "avx2"
	VariantAVX512F Variant = "avx512f"
	VariantNEON    Variant = "neon"
)

// HashFunc computes the Shabal-256 digest of a scoop-derived message. It is
// the shape every dispatch target implements, so the CPU Worker can hold a
// single function value regardless of which variant was selected.
type HashFunc func(data []byte) [shabal.Size]byte

// BatchHashFunc computes the Shabal-256 digest of LaneWidth() equal-length
// messages together. Scalar's batch is a plain loop over Sum256; SSE2's
// batch drives shabal.SumBatch256, which steps four lanes in lockstep the
// way an SSE2 register would.
type BatchHashFunc func(messages [][]byte) [][shabal.Size]byte

var (
	once      sync.Once
	selected  Variant
	fn        HashFunc
	batchFn   BatchHashFunc
	laneWidth int
)

// detect inspects the running CPU and returns the best variant this build
// supports. It never returns a variant this binary lacks an implementation
// for.
func detect() Variant {
	switch {
	case cpu.X86.HasAVX512F:
		return VariantAVX512F
	case cpu.X86.HasAVX2:
		return VariantAVX2
	case cpu.X86.HasAVX:
		return VariantAVX
	case cpu.X86.HasSSE2:
		return VariantSSE2
	case cpu.ARM64.HasASIMD:
		return VariantNEON
	default:
		return VariantScalar
	}
}

func implementationFor(v Variant) HashFunc {
	switch v {
	case VariantSSE2:
		return sse2Sum256
	default:
		// AVX/AVX2/AVX512F/NEON are declared dispatch targets without a
		// hand-optimized body yet; see DESIGN.md.
		return shabal.Sum256
	}
}

func scalarBatch(messages [][]byte) [][shabal.Size]byte {
	out := make([][shabal.Size]byte, len(messages))
	for i, m := range messages {
		out[i] = shabal.Sum256(m)
	}
	return out
}

// batchImplementationFor returns the batched hasher for v and the number of
// messages it consumes per call. Only SSE2 has a real multi-lane path;
// everything else processes one message per call.
func batchImplementationFor(v Variant) (BatchHashFunc, int) {
	switch v {
	case VariantSSE2:
		return sse2HashBatch, shabal.LaneWidth256
	default:
		return scalarBatch, 1
	}
}

func resolve() {
	once.Do(func() {
		selected = detect()
		fn = implementationFor(selected)
		batchFn, laneWidth = batchImplementationFor(selected)
	})
}

// LaneWidth reports how many messages HashBatch consumes per call for the
// variant selected on this process. Callers should batch work in groups of
// LaneWidth() and fall back to Hash for any remainder.
func LaneWidth() int {
	resolve()
	return laneWidth
}

// HashBatch hashes LaneWidth() equal-length messages in a single call, one
// per lane, using the variant selected for this process.
func HashBatch(messages [][]byte) [][shabal.Size]byte {
	resolve()
	return batchFn(messages)
}

// Selected returns the Variant chosen for this process. Detection runs on
// first call and the result is memoized for the process lifetime.
func Selected() Variant {
	resolve()
	return selected
}

// Hash computes a Shabal-256 digest using the variant selected for this
// process.
func Hash(data []byte) [shabal.Size]byte {
	resolve()
	return fn(data)
}
