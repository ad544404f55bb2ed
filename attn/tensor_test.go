package attn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmaxRows_SumsToOne(t *testing.T) {
	tt := NewTensor(1, 2, 2, 3)
	copy(tt.Row(0, 0, 0), []float64{1, 2, 3})
	copy(tt.Row(0, 0, 1), []float64{-1, 0, 1})
	copy(tt.Row(0, 1, 0), []float64{100, 100, 100})
	copy(tt.Row(0, 1, 1), []float64{0, math.Inf(-1), 0})

	tt.SoftmaxRows()

	for h := 0; h < 2; h++ {
		for r := 0; r < 2; r++ {
			var sum float64
			for _, v := range tt.Row(0, h, r) {
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-12, "row (%d,%d) should normalize", h, r)
		}
	}
	assert.Equal(t, 0.0, tt.At(0, 1, 1, 1), "-Inf position should get zero mass")
}

func TestSoftmaxRows_AllMaskedRowCollapsesToZero(t *testing.T) {
	tt := NewFilled(1, 1, 1, 4, math.Inf(-1))
	tt.SoftmaxRows()
	for _, v := range tt.Row(0, 0, 0) {
		require.False(t, math.IsNaN(v), "fully masked row must not produce NaN")
		require.Equal(t, 0.0, v)
	}
}

func TestMatMulNT_MatchesHandComputed(t *testing.T) {
	// GIVEN a 2x2 Q and 3x2 K for a single (batch, head)
	q := NewTensor(1, 1, 2, 2)
	copy(q.Row(0, 0, 0), []float64{1, 0})
	copy(q.Row(0, 0, 1), []float64{2, 1})
	k := NewTensor(1, 1, 3, 2)
	copy(k.Row(0, 0, 0), []float64{1, 1})
	copy(k.Row(0, 0, 1), []float64{0, 2})
	copy(k.Row(0, 0, 2), []float64{-1, 0})

	// WHEN computing Q . K^T
	s := MatMulNT(q, k)

	// THEN every entry matches the dot products
	want := [][]float64{{1, 0, -1}, {3, 2, -2}}
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			if s.At(0, 0, r, c) != want[r][c] {
				t.Errorf("scores[%d][%d] = %v, want %v", r, c, s.At(0, 0, r, c), want[r][c])
			}
		}
	}
}

func TestTensorAdd_BroadcastsSingleHeadMask(t *testing.T) {
	logits := NewFilled(1, 2, 2, 2, 1.0)
	mask := NewTensor(1, 1, 2, 2)
	mask.Set(0, 0, 0, 1, math.Inf(-1))

	logits.Add(mask)

	for h := 0; h < 2; h++ {
		assert.Equal(t, 1.0, logits.At(0, h, 0, 0))
		assert.True(t, math.IsInf(logits.At(0, h, 0, 1), -1), "head %d should see the broadcast mask", h)
		assert.Equal(t, 1.0, logits.At(0, h, 1, 1))
	}
}

func TestTensorRowAliasesBacking(t *testing.T) {
	tt := NewTensor(1, 1, 2, 2)
	tt.Row(0, 0, 1)[0] = 42
	if tt.At(0, 0, 1, 0) != 42 {
		t.Fatal("Row must write through to the tensor")
	}
}

func TestTensorMatAliasesBacking(t *testing.T) {
	tt := NewTensor(1, 2, 2, 2)
	tt.Mat(0, 1).Set(1, 1, 7)
	if tt.At(0, 1, 1, 1) != 7 {
		t.Fatal("Mat must view the tensor's storage")
	}
}
