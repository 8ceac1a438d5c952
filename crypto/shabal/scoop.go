package shabal

import "encoding/binary"

// NumScoops is the number of 64-byte scoops packed into a nonce (§3).
const NumScoops = 4096

// ScoopNumber computes the scoop index a miner reads for a given generation
// signature and block height, per §6's mining puzzle definition: the low 16
// bits of Shabal256(gensig || height_be) taken from bytes [30:32], reduced
// modulo the scoop count.
func ScoopNumber(genSig [32]byte, height uint64) uint16 {
	var buf [40]byte
	copy(buf[:32], genSig[:])
	binary.BigEndian.PutUint64(buf[32:], height)
	sum := Sum256(buf[:])
	word := binary.BigEndian.Uint16(sum[30:32])
	return word % NumScoops
}
