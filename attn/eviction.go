package attn

// EvictionState is the fixed-capacity active-token set the SnapKV and H2O
// policies maintain per (batch x head) row. Tokens hold absolute positions;
// Counts[row] entries of Tokens[row] are valid. A token displaced from the
// set is never attended to again.
type EvictionState struct {
	Capacity int
	Tokens   [][]int
	Counts   []int
}

// NewEvictionState allocates state for rows (batch x head) flattened rows at
// the given capacity, with token 0 pre-admitted: the first position is always
// attendable, so the sequential loop starts from a populated set.
func NewEvictionState(rows, capacity int) *EvictionState {
	st := &EvictionState{
		Capacity: capacity,
		Tokens:   make([][]int, rows),
		Counts:   make([]int, rows),
	}
	for r := range st.Tokens {
		st.Tokens[r] = make([]int, capacity)
		st.Counts[r] = 1
	}
	return st
}

// Grow extends the capacity, preserving the admitted tokens. Budgets grow
// monotonically with sequence position, so capacity only ever increases.
func (st *EvictionState) Grow(capacity int) {
	if capacity <= st.Capacity {
		return
	}
	for r := range st.Tokens {
		grown := make([]int, capacity)
		copy(grown, st.Tokens[r])
		st.Tokens[r] = grown
	}
	st.Capacity = capacity
}

// Admit offers token to row under the given step budget. While below budget
// the token is appended; at budget it replaces the minimum-importance active
// token iff strictly more important, else it is discarded for good.
// importance is indexed by absolute token position and must cover both the
// active tokens and the offered one.
func (st *EvictionState) Admit(row, token, budget int, importance []float64) error {
	if budget > st.Capacity {
		st.Grow(budget)
	}
	count := st.Counts[row]
	if count > st.Capacity {
		return stateErrorf(-1, "eviction active count %d exceeds capacity %d", count, st.Capacity)
	}
	if count < budget {
		st.Tokens[row][count] = token
		st.Counts[row] = count + 1
		return nil
	}
	minIdx := 0
	minVal := importance[st.Tokens[row][0]]
	for i := 1; i < budget; i++ {
		if v := importance[st.Tokens[row][i]]; v < minVal {
			minVal = v
			minIdx = i
		}
	}
	if importance[token] > minVal {
		st.Tokens[row][minIdx] = token
	}
	return nil
}

// MaskRow writes the active set of row into dst as an additive mask: 0 at
// active positions, leaving the rest untouched (callers pre-fill with -Inf).
func (st *EvictionState) MaskRow(row int, dst []float64) {
	for i := 0; i < st.Counts[row]; i++ {
		t := st.Tokens[row][i]
		if t < len(dst) {
			dst[t] = 0
		}
	}
}

// Clone deep-copies the state, so a prefill inside one forward call can be
// persisted without aliasing scratch buffers.
func (st *EvictionState) Clone() *EvictionState {
	c := &EvictionState{
		Capacity: st.Capacity,
		Tokens:   make([][]int, len(st.Tokens)),
		Counts:   make([]int, len(st.Counts)),
	}
	copy(c.Counts, st.Counts)
	for r := range st.Tokens {
		c.Tokens[r] = make([]int, len(st.Tokens[r]))
		copy(c.Tokens[r], st.Tokens[r])
	}
	return c
}

// maxPool1D applies a stride-1, same-padded max pool over vals.
func maxPool1D(vals []float64, kernel int) []float64 {
	n := len(vals)
	out := make([]float64, n)
	half := kernel / 2
	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > n {
			hi = n
		}
		m := vals[lo]
		for j := lo + 1; j < hi; j++ {
			if vals[j] > m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}
