package attn

// Cache is the append-only key/value history for one generation sequence.
// Per layer it holds tensors of shape (batch, kvHeads, runLen, headDim) that
// grow by exactly the number of newly appended tokens per call, plus the
// eviction state the SnapKV/H2O policies carry between prefill and decode.
//
// One Cache instance serves exactly one sequence end-to-end; it is mutated
// exclusively by the single forward call in flight for a layer.
type Cache struct {
	keys     map[int]*Tensor
	values   map[int]*Tensor
	eviction map[int]*EvictionState
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		keys:     make(map[int]*Tensor),
		values:   make(map[int]*Tensor),
		eviction: make(map[int]*EvictionState),
	}
}

// Append adds newly projected keys/values for a layer and returns the full
// accumulated history. Shapes other than the token dimension must match what
// the layer appended before.
func (c *Cache) Append(layerIdx int, k, v *Tensor) (*Tensor, *Tensor, error) {
	prevK, ok := c.keys[layerIdx]
	if !ok {
		c.keys[layerIdx] = k.Clone()
		c.values[layerIdx] = v.Clone()
		return c.keys[layerIdx], c.values[layerIdx], nil
	}
	prevV := c.values[layerIdx]
	if prevK.Batch != k.Batch || prevK.Heads != k.Heads || prevK.Cols != k.Cols {
		return nil, nil, stateErrorf(layerIdx, "cache append shape %v incompatible with history %v", k.Shape(), prevK.Shape())
	}
	c.keys[layerIdx] = concatRows(prevK, k)
	c.values[layerIdx] = concatRows(prevV, v)
	return c.keys[layerIdx], c.values[layerIdx], nil
}

// SeqLen returns the accumulated token count for a layer.
func (c *Cache) SeqLen(layerIdx int) int {
	if k, ok := c.keys[layerIdx]; ok {
		return k.Rows
	}
	return 0
}

// EvictionState returns the persisted active-set state for a layer, or nil
// if the layer has not completed a prefill under an eviction policy.
func (c *Cache) EvictionState(layerIdx int) *EvictionState {
	return c.eviction[layerIdx]
}

// SetEvictionState persists the active-set state a decode step will resume
// from.
func (c *Cache) SetEvictionState(layerIdx int, st *EvictionState) {
	c.eviction[layerIdx] = st
}

// concatRows stacks b under a along the token (row) dimension.
func concatRows(a, b *Tensor) *Tensor {
	out := NewTensor(a.Batch, a.Heads, a.Rows+b.Rows, a.Cols)
	for bi := 0; bi < a.Batch; bi++ {
		for h := 0; h < a.Heads; h++ {
			for r := 0; r < a.Rows; r++ {
				copy(out.Row(bi, h, r), a.Row(bi, h, r))
			}
			for r := 0; r < b.Rows; r++ {
				copy(out.Row(bi, h, a.Rows+r), b.Row(bi, h, r))
			}
		}
	}
	return out
}
