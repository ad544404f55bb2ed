package attn

import (
	"math"
	"sort"
)

// NewCausalMask builds the base additive causal mask of shape
// (batch, 1, qLen, kvLen): 0 where a query may attend, -Inf strictly above
// the diagonal. Queries are aligned at the tail of the key axis, so query row
// r holds absolute position kvLen-qLen+r and may attend keys [0, kvLen-qLen+r].
func NewCausalMask(batch, qLen, kvLen int) *Tensor {
	m := NewTensor(batch, 1, qLen, kvLen)
	offset := kvLen - qLen
	for b := 0; b < batch; b++ {
		for r := 0; r < qLen; r++ {
			row := m.Row(b, 0, r)
			for c := offset + r + 1; c < kvLen; c++ {
				row[c] = math.Inf(-1)
			}
		}
	}
	return m
}

// causalHorizon returns the number of keys query row r may attend given the
// tail alignment of qLen queries against kvLen keys.
func causalHorizon(qLen, kvLen, r int) int {
	return kvLen - qLen + r + 1
}

// argsortDesc returns the indices of row ordered by descending value.
// Ties resolve by ascending index so selection is deterministic.
func argsortDesc(row []float64) []int {
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return row[idx[a]] > row[idx[b]]
	})
	return idx
}

// selectionFromRanks converts per-(batch, head, query) descending rank lists
// into an additive selection mask. For each query row it keeps the top
// N = max(round(kvLen x (1-aggression)), minSparseIndex, 1) ranked keys,
// forces the prefix [0, minSparseIndex) into the kept set, and re-masks
// every causally invalid position so the selection mask alone never unmasks
// the future.
//
// ranks[b][h][r] must be a permutation of [0, kvLen).
func selectionFromRanks(ranks [][][][]int, batch, heads, qLen, kvLen int, minSparseIndex int, aggression float64) *Tensor {
	keep := keepBudget(kvLen, aggression, minSparseIndex)
	sel := NewFilled(batch, heads, qLen, kvLen, math.Inf(-1))
	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			for r := 0; r < qLen; r++ {
				row := sel.Row(b, h, r)
				order := ranks[b][h][r]
				for i := 0; i < keep && i < len(order); i++ {
					row[order[i]] = 0
				}
				for c := 0; c < minSparseIndex && c < kvLen; c++ {
					row[c] = 0
				}
				for c := causalHorizon(qLen, kvLen, r); c < kvLen; c++ {
					row[c] = math.Inf(-1)
				}
			}
		}
	}
	return sel
}

// keepBudget is the number of keys retained per row for top-k policies.
func keepBudget(kvLen int, aggression float64, minSparseIndex int) int {
	n := int(math.Round(float64(kvLen) * (1 - aggression)))
	if n < minSparseIndex {
		n = minSparseIndex
	}
	if n < 1 {
		n = 1
	}
	return n
}

// stepBudget is the eviction active-set capacity at 0-indexed step i.
// It grows monotonically with sequence position.
func stepBudget(i int, aggression float64, minSparseIndex int) int {
	n := int(math.Round(float64(i+1) * (1 - aggression)))
	if n < minSparseIndex {
		n = minSparseIndex
	}
	if n < 1 {
		n = 1
	}
	return n
}

// streamingRanks builds the fixed streamingLLM rank order for each query row
// of a kvLen-key context: the first four sink tokens rank highest, then the
// most recent tokens in descending recency, then everything not yet ranked.
func streamingRanks(kvLen int) [][]int {
	ranks := make([][]int, kvLen)
	for curr := 1; curr <= kvLen; curr++ {
		seen := make([]bool, kvLen)
		order := make([]int, 0, kvLen)
		push := func(i int) {
			if i >= 0 && i < kvLen && !seen[i] {
				seen[i] = true
				order = append(order, i)
			}
		}
		for i := 0; i < streamSinkTokens; i++ {
			push(i)
		}
		for i := curr - 1; i >= streamSinkTokens; i-- {
			push(i)
		}
		for i := 0; i < kvLen; i++ {
			push(i)
		}
		ranks[curr-1] = order
	}
	return ranks
}
