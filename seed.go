package banksy

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// Component salts keep the random streams of different stages independent
// even when they share a combo seed.
const (
	saltPCA     = "pca"
	saltCluster = "cluster"
	saltViz     = "viz"
)

// deriveSeed mixes a base seed, a component salt, and arbitrary field bits
// into an independent seed. The derivation is pure, so parallel execution
// order never affects which stream a stage consumes.
func deriveSeed(base int64, salt string, fields ...uint64) int64 {
	h := fnv.New64a()
	h.Write([]byte(salt))
	var buf [8]byte
	for _, f := range fields {
		binary.LittleEndian.PutUint64(buf[:], f)
		h.Write(buf[:])
	}
	return int64(splitmix64(uint64(base) ^ h.Sum64()))
}

// splitmix64 is the SplitMix64 finalizer, used to decorrelate nearby seeds.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func f64bits(v float64) uint64 { return math.Float64bits(v) }

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
