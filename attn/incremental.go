package attn

import (
	"errors"
	"math"
)

// selIncremental builds the selection mask for the SnapKV and H2O policies.
// Both maintain a fixed-capacity active-token set with replace-by-minimum
// semantics; they differ only in the importance signal. Prefill (qLen > 1)
// runs the admission loop once per query position sequentially and persists
// the final active set into the cache; decode (qLen == 1) resumes from the
// persisted set, scores the new token by the current row's raw attention
// scores, and persists the updated set.
func (l *Layer) selIncremental(st forwardState) (*Tensor, error) {
	scores, causal := st.scores, st.causal
	batch, heads, qLen, kvLen := scores.Batch, scores.Heads, scores.Rows, scores.Cols
	if qLen == 1 && kvLen > 1 {
		return l.incrementalDecode(st)
	}
	if qLen != kvLen {
		return nil, stateErrorf(l.layerIdx, "policy %s: chunked prefill (%d queries against %d keys) is not supported; prefill must cover the whole prompt", l.policy, qLen, kvLen)
	}

	bh := batch * heads
	evst := NewEvictionState(bh, stepBudget(qLen-1, l.aggression, l.minSparseIndex))
	sel := NewFilled(batch, heads, qLen, kvLen, math.Inf(-1))
	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			sel.Set(b, h, 0, 0, 0)
		}
	}

	// SnapKV scores tokens by attention mass accumulated over the trailing
	// observation window; the cumulative row sums make each window a single
	// subtraction.
	var cum *Tensor
	if l.policy == PolicySnapKV {
		probs := scores.Clone()
		probs.Add(causal)
		probs.SoftmaxRows()
		cum = probs
		for b := 0; b < batch; b++ {
			for h := 0; h < heads; h++ {
				for r := 1; r < qLen; r++ {
					prev := cum.Row(b, h, r-1)
					row := cum.Row(b, h, r)
					for c := range row {
						row[c] += prev[c]
					}
				}
			}
		}
	}

	for i := 1; i < qLen; i++ {
		budget := stepBudget(i, l.aggression, l.minSparseIndex)
		for b := 0; b < batch; b++ {
			for h := 0; h < heads; h++ {
				row := b*heads + h
				var imp []float64
				if l.policy == PolicySnapKV {
					imp = l.snapKVImportance(cum, b, h, i)
				} else {
					imp = scores.Row(b, h, i)
				}
				if err := evst.Admit(row, i, budget, imp); err != nil {
					return nil, l.wrapState(err)
				}
				evst.MaskRow(row, sel.Row(b, h, i))
			}
		}
	}

	l.forcePrefix(sel)
	if st.in.UseCache && st.in.Cache != nil {
		st.in.Cache.SetEvictionState(l.layerIdx, evst.Clone())
	}
	return sel, nil
}

// snapKVImportance returns the pooled observation-window attention mass for
// every token position 0..i at query step i.
func (l *Layer) snapKVImportance(cum *Tensor, b, h, i int) []float64 {
	obsStart := i - l.cfg.WindowSize + 1
	if obsStart < 0 {
		obsStart = 0
	}
	agg := make([]float64, i+1)
	cur := cum.Row(b, h, i)
	if obsStart > 0 {
		prev := cum.Row(b, h, obsStart-1)
		for c := range agg {
			agg[c] = cur[c] - prev[c]
		}
	} else {
		copy(agg, cur)
	}
	return maxPool1D(agg, l.cfg.KernelSize)
}

// incrementalDecode runs one admission round against the cache-persisted
// active set.
func (l *Layer) incrementalDecode(st forwardState) (*Tensor, error) {
	scores := st.scores
	batch, heads, kvLen := scores.Batch, scores.Heads, scores.Cols
	if st.in.Cache == nil {
		return nil, stateErrorf(l.layerIdx, "policy %s: decode step without a cache", l.policy)
	}
	prev := st.in.Cache.EvictionState(l.layerIdx)
	if prev == nil {
		return nil, stateErrorf(l.layerIdx, "policy %s: decode step without prefill eviction state", l.policy)
	}
	evst := prev.Clone()

	newTok := kvLen - 1
	budget := stepBudget(newTok, l.aggression, l.minSparseIndex)
	sel := NewFilled(batch, heads, 1, kvLen, math.Inf(-1))
	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			row := b*heads + h
			if err := evst.Admit(row, newTok, budget, scores.Row(b, h, 0)); err != nil {
				return nil, l.wrapState(err)
			}
			evst.MaskRow(row, sel.Row(b, h, 0))
		}
	}

	l.forcePrefix(sel)
	if st.in.UseCache {
		st.in.Cache.SetEvictionState(l.layerIdx, evst)
	}
	return sel, nil
}

// forcePrefix unmasks the always-kept prefix wherever it is causally
// reachable.
func (l *Layer) forcePrefix(sel *Tensor) {
	qLen, kvLen := sel.Rows, sel.Cols
	for b := 0; b < sel.Batch; b++ {
		for h := 0; h < sel.Heads; h++ {
			for r := 0; r < qLen; r++ {
				horizon := causalHorizon(qLen, kvLen, r)
				row := sel.Row(b, h, r)
				for c := 0; c < l.minSparseIndex && c < horizon; c++ {
					row[c] = 0
				}
			}
		}
	}
}

func (l *Layer) wrapState(err error) error {
	var se *StateError
	if errors.As(err, &se) && se.Layer < 0 {
		return &StateError{Layer: l.layerIdx, Msg: se.Msg}
	}
	return err
}
