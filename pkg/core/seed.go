package core

// splitmix64 finalizer
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// MixSeed derives a sampler seed from stable task identifiers.
// The result depends only on the ids and their order, never on scheduling.
func MixSeed(ids ...int) uint64 {
	h := uint64(0x243f6a8885a308d3)
	for _, id := range ids {
		h = mix64(h ^ uint64(int64(id)))
	}
	return h
}
