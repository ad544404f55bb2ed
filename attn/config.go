package attn

// Defaults for the SnapKV observation window and pooling kernel, matching the
// reference settings.
const (
	DefaultWindowSize = 32
	DefaultKernelSize = 7
	DefaultPageSize   = 16
	DefaultGroupSize  = 8

	// streamSinkTokens is the number of always-ranked-first sink tokens under
	// the streamingLLM policy.
	streamSinkTokens = 4
)

// LayerConfig holds the static per-layer parameters of an attention layer.
// All fields are fixed at construction; the policy, aggression, and kept
// prefix are bound once via Layer.Configure before the first forward call.
type LayerConfig struct {
	NumHeads   int // query heads
	NumKVHeads int // key/value heads; NumHeads must be a multiple
	HeadDim    int
	HiddenSize int // NumHeads * HeadDim

	// MinSparseIndex is the always-kept prefix length: positions
	// [0, MinSparseIndex) are never evicted while causally reachable.
	MinSparseIndex int

	// PageSize is the quest page length in tokens.
	PageSize int
	// GroupFactor is the head-dimension downsampling factor for
	// oracle_grouped. Must divide HeadDim.
	GroupFactor int
	// WindowSize is the SnapKV trailing observation window, in tokens.
	WindowSize int
	// KernelSize is the SnapKV max-pool kernel (stride 1, same padding).
	KernelSize int

	// PretrainingTP is the tensor-parallel degree the checkpoint was trained
	// with. Projections are applied as an equal split-and-concatenate over
	// this many weight slices; 0 or 1 means a single full matmul.
	PretrainingTP int
}

// withDefaults fills zero-valued tunables.
func (c LayerConfig) withDefaults() LayerConfig {
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.KernelSize == 0 {
		c.KernelSize = DefaultKernelSize
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.GroupFactor == 0 {
		c.GroupFactor = DefaultGroupSize
	}
	return c
}

// validate checks structural parameters. Policy-specific divisibility is
// checked here as well so misconfiguration surfaces before any tensor work.
func (c LayerConfig) validate(layerIdx int) error {
	if c.NumHeads <= 0 || c.HeadDim <= 0 {
		return configErrorf(layerIdx, "need positive head count and head dim, got %d x %d", c.NumHeads, c.HeadDim)
	}
	if c.NumKVHeads <= 0 || c.NumHeads%c.NumKVHeads != 0 {
		return configErrorf(layerIdx, "query heads (%d) must be a multiple of kv heads (%d)", c.NumHeads, c.NumKVHeads)
	}
	if c.HiddenSize != c.NumHeads*c.HeadDim {
		return configErrorf(layerIdx, "hidden size %d != heads %d x head dim %d", c.HiddenSize, c.NumHeads, c.HeadDim)
	}
	if c.HeadDim%c.GroupFactor != 0 {
		return configErrorf(layerIdx, "head dim %d not divisible by group factor %d", c.HeadDim, c.GroupFactor)
	}
	if c.PageSize <= 0 {
		return configErrorf(layerIdx, "page size must be positive, got %d", c.PageSize)
	}
	if c.KernelSize <= 0 || c.KernelSize%2 == 0 {
		return configErrorf(layerIdx, "pool kernel must be positive odd, got %d", c.KernelSize)
	}
	if c.WindowSize <= 0 {
		return configErrorf(layerIdx, "observation window must be positive, got %d", c.WindowSize)
	}
	if c.MinSparseIndex < 0 {
		return configErrorf(layerIdx, "min sparse index must be non-negative, got %d", c.MinSparseIndex)
	}
	return nil
}

// kvGroups returns the grouped-query replication factor.
func (c LayerConfig) kvGroups() int {
	return c.NumHeads / c.NumKVHeads
}
