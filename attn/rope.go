package attn

import "gonum.org/v1/gonum/mat"

// ApplyRotary rotates q and k in place with precomputed cos/sin tables, each
// row of head-dim width. positions maps token row i of the call to its row in
// the tables; nil means row i reads table row i, which suits callers that
// pre-gather the tables per call. Construction and scaling of the tables is
// the collaborator's job.
func ApplyRotary(q, k *Tensor, cos, sin [][]float64, positions []int) {
	rotateHalfRows(q, cos, sin, positions)
	rotateHalfRows(k, cos, sin, positions)
}

func rotateHalfRows(t *Tensor, cos, sin [][]float64, positions []int) {
	half := t.Cols / 2
	for b := 0; b < t.Batch; b++ {
		for h := 0; h < t.Heads; h++ {
			for r := 0; r < t.Rows; r++ {
				row := t.Row(b, h, r)
				p := r
				if positions != nil {
					p = positions[r]
				}
				c, s := cos[p], sin[p]
				for i := 0; i < half; i++ {
					x1, x2 := row[i], row[i+half]
					row[i] = x1*c[i] - x2*s[i]
					row[i+half] = x2*c[i+half] + x1*s[i+half]
				}
			}
		}
	}
}

// RepeatKV expands grouped-query key/value heads so each KV head serves its
// group of query heads: (batch, kvHeads, seq, dim) becomes
// (batch, kvHeads*groups, seq, dim) with query head h reading kv head
// h/groups. groups == 1 returns the input unchanged.
func RepeatKV(t *Tensor, groups int) *Tensor {
	if groups == 1 {
		return t
	}
	out := NewTensor(t.Batch, t.Heads*groups, t.Rows, t.Cols)
	for b := 0; b < t.Batch; b++ {
		for h := 0; h < t.Heads*groups; h++ {
			src := h / groups
			for r := 0; r < t.Rows; r++ {
				copy(out.Row(b, h, r), t.Row(b, src, r))
			}
		}
	}
	return out
}

// linearTP computes x · wᵀ where w is (outDim, inDim). With tp > 1 the weight
// rows are split into tp equal slices, each slice applied separately, and the
// partial outputs concatenated, matching the checkpoint's tensor-parallel
// weight layout.
func linearTP(x, w *mat.Dense, tp int) *mat.Dense {
	rows, _ := x.Dims()
	outDim, _ := w.Dims()
	out := mat.NewDense(rows, outDim, nil)
	if tp <= 1 {
		out.Mul(x, w.T())
		return out
	}
	sliceRows := outDim / tp
	for i := 0; i < tp; i++ {
		ws := w.Slice(i*sliceRows, (i+1)*sliceRows, 0, w.RawMatrix().Cols)
		part := mat.NewDense(rows, sliceRows, nil)
		part.Mul(x, ws.T())
		for r := 0; r < rows; r++ {
			for c := 0; c < sliceRows; c++ {
				out.Set(r, i*sliceRows+c, part.At(r, c))
			}
		}
	}
	return out
}

// linearSumTP computes x · wᵀ with w split along its input dimension: each
// slice of x meets the matching weight column slice and the partial products
// are summed. This mirrors the output-projection layout under tensor
// parallelism.
func linearSumTP(x, w *mat.Dense, tp int) *mat.Dense {
	rows, inDim := x.Dims()
	outDim, _ := w.Dims()
	out := mat.NewDense(rows, outDim, nil)
	if tp <= 1 {
		out.Mul(x, w.T())
		return out
	}
	sliceCols := inDim / tp
	for i := 0; i < tp; i++ {
		xs := x.Slice(0, rows, i*sliceCols, (i+1)*sliceCols)
		ws := w.Slice(0, outDim, i*sliceCols, (i+1)*sliceCols)
		part := mat.NewDense(rows, outDim, nil)
		part.Mul(xs, ws.T())
		out.Add(out, part)
	}
	return out
}
