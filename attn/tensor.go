package attn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense, row-major float64 tensor of rank 4 with shape
// (batch, heads, rows, cols). Lower-rank data uses leading dimensions of 1;
// hidden states are carried as (batch, 1, seqLen, hiddenSize).
//
// The innermost two dimensions of any (batch, head) pair are contiguous, so
// per-head matrices can be exposed as gonum mat.Dense views without copying.
type Tensor struct {
	Batch int
	Heads int
	Rows  int
	Cols  int
	Data  []float64
}

// NewTensor allocates a zero-filled tensor of the given shape.
func NewTensor(batch, heads, rows, cols int) *Tensor {
	return &Tensor{
		Batch: batch,
		Heads: heads,
		Rows:  rows,
		Cols:  cols,
		Data:  make([]float64, batch*heads*rows*cols),
	}
}

// NewFilled allocates a tensor with every element set to v.
func NewFilled(batch, heads, rows, cols int, v float64) *Tensor {
	t := NewTensor(batch, heads, rows, cols)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// Shape returns the tensor shape as a fixed array, for error reporting.
func (t *Tensor) Shape() [4]int {
	return [4]int{t.Batch, t.Heads, t.Rows, t.Cols}
}

func (t *Tensor) index(b, h, r, c int) int {
	return ((b*t.Heads+h)*t.Rows+r)*t.Cols + c
}

// At returns the element at (b, h, r, c).
func (t *Tensor) At(b, h, r, c int) float64 {
	return t.Data[t.index(b, h, r, c)]
}

// Set assigns the element at (b, h, r, c).
func (t *Tensor) Set(b, h, r, c int, v float64) {
	t.Data[t.index(b, h, r, c)] = v
}

// Row returns the contiguous slice backing row r of the (b, h) matrix.
// Mutations write through to the tensor.
func (t *Tensor) Row(b, h, r int) []float64 {
	off := t.index(b, h, r, 0)
	return t.Data[off : off+t.Cols : off+t.Cols]
}

// Mat returns the (b, h) slice as a gonum matrix sharing the tensor's
// backing storage.
func (t *Tensor) Mat(b, h int) *mat.Dense {
	off := t.index(b, h, 0, 0)
	return mat.NewDense(t.Rows, t.Cols, t.Data[off:off+t.Rows*t.Cols])
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c := NewTensor(t.Batch, t.Heads, t.Rows, t.Cols)
	copy(c.Data, t.Data)
	return c
}

// Add accumulates o into t element-wise. Shapes must match exactly except
// that o may have Heads == 1, in which case its head slice is broadcast
// across all of t's heads (the causal mask is built per batch, not per head).
func (t *Tensor) Add(o *Tensor) {
	if o.Heads == t.Heads {
		floats.Add(t.Data, o.Data)
		return
	}
	for b := 0; b < t.Batch; b++ {
		for h := 0; h < t.Heads; h++ {
			for r := 0; r < t.Rows; r++ {
				floats.Add(t.Row(b, h, r), o.Row(b, 0, r))
			}
		}
	}
}

// Scale multiplies every element by s.
func (t *Tensor) Scale(s float64) {
	floats.Scale(s, t.Data)
}

// SoftmaxRows applies a numerically stable softmax along the last dimension
// of every (b, h, r) row, in place. Accumulation is in float64, matching the
// elevated-precision softmax contract. A row that is entirely -Inf (no
// attendable position) collapses to zeros rather than NaN.
func (t *Tensor) SoftmaxRows() {
	for b := 0; b < t.Batch; b++ {
		for h := 0; h < t.Heads; h++ {
			for r := 0; r < t.Rows; r++ {
				softmaxInPlace(t.Row(b, h, r))
			}
		}
	}
}

func softmaxInPlace(row []float64) {
	maxv := floats.Max(row)
	if math.IsInf(maxv, -1) {
		for i := range row {
			row[i] = 0
		}
		return
	}
	for i, v := range row {
		row[i] = math.Exp(v - maxv)
	}
	sum := floats.Sum(row)
	if sum > 0 {
		floats.Scale(1/sum, row)
	}
}

// MatMulNT computes out[b,h] = a[b,h] · bT[b,h]ᵀ for every (batch, head)
// pair, via gonum views. Used for QKᵀ score computation.
func MatMulNT(a, bT *Tensor) *Tensor {
	out := NewTensor(a.Batch, a.Heads, a.Rows, bT.Rows)
	for b := 0; b < a.Batch; b++ {
		for h := 0; h < a.Heads; h++ {
			out.Mat(b, h).Mul(a.Mat(b, h), bT.Mat(b, h).T())
		}
	}
	return out
}

// MatMulNN computes out[b,h] = a[b,h] · c[b,h] for every (batch, head) pair.
// Used for the weights·V product.
func MatMulNN(a, c *Tensor) *Tensor {
	out := NewTensor(a.Batch, a.Heads, a.Rows, c.Cols)
	for b := 0; b < a.Batch; b++ {
		for h := 0; h < a.Heads; h++ {
			out.Mat(b, h).Mul(a.Mat(b, h), c.Mat(b, h))
		}
	}
	return out
}
