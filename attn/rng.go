package attn

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// PartitionedRNG provides deterministic, isolated RNG streams per layer.
// The random policy and the quest small-context fallback draw from the stream
// of the layer they run in, so a run is reproducible from the master seed
// alone and adding layers does not perturb the draws of existing ones.
//
// Derivation: masterSeed XOR fnv1a64("layer_<idx>").
//
// Thread-safety: NOT thread-safe. Layers execute sequentially within a step.
type PartitionedRNG struct {
	seed   int64
	layers map[int]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:   seed,
		layers: make(map[int]*rand.Rand),
	}
}

// ForLayer returns the deterministically-seeded RNG for the given layer.
// The same layer index always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForLayer(layerIdx int) *rand.Rand {
	if rng, ok := p.layers[layerIdx]; ok {
		return rng
	}
	derived := p.seed ^ fnv1a64(fmt.Sprintf("layer_%d", layerIdx))
	rng := rand.New(rand.NewSource(derived))
	p.layers[layerIdx] = rng
	return rng
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
