package cpuflags

import "github.com/signum-network/gopoc-miner/crypto/shabal"

// sse2Sum256 is the SSE2 single-message dispatch target, used when a caller
// hashes one message at a time instead of batching through HashBatch.
func sse2Sum256(data []byte) [shabal.Size]byte {
	return shabal.Sum256(data)
}

// sse2HashBatch hashes four scoop messages together via shabal.SumBatch256,
// which advances four independent Shabal states in lockstep, one per lane
// of a 128-bit SSE2 register. len(messages) must equal shabal.LaneWidth256.
func sse2HashBatch(messages [][]byte) [][shabal.Size]byte {
	var lanes [shabal.LaneWidth256][]byte
	copy(lanes[:], messages)
	digests := shabal.SumBatch256(lanes)
	out := make([][shabal.Size]byte, shabal.LaneWidth256)
	copy(out, digests[:])
	return out
}
