package attn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictionState_FillsUpToBudgetThenReplacesMin(t *testing.T) {
	// GIVEN a fresh state with capacity 3 and token 0 pre-admitted
	st := NewEvictionState(1, 3)
	imp := []float64{0.5, 0.1, 0.9, 0.2, 0.8}

	// WHEN admitting below budget, tokens are appended unconditionally
	require.NoError(t, st.Admit(0, 1, 3, imp))
	require.NoError(t, st.Admit(0, 2, 3, imp))
	assert.Equal(t, 3, st.Counts[0])
	assert.ElementsMatch(t, []int{0, 1, 2}, st.Tokens[0][:3])

	// WHEN the set is full, a more important token displaces the minimum
	require.NoError(t, st.Admit(0, 3, 3, imp))
	assert.ElementsMatch(t, []int{0, 3, 2}, st.Tokens[0][:3], "token 1 (imp 0.1) should be evicted by token 3 (imp 0.2)")

	// AND a less important offer than every active token is discarded
	imp2 := []float64{0.5, 0.1, 0.9, 0.2, 0.05}
	require.NoError(t, st.Admit(0, 4, 3, imp2))
	assert.ElementsMatch(t, []int{0, 3, 2}, st.Tokens[0][:3])
}

func TestEvictionState_TieGoesToIncumbent(t *testing.T) {
	st := NewEvictionState(1, 2)
	imp := []float64{0.3, 0.3}
	require.NoError(t, st.Admit(0, 1, 1, imp))
	assert.Equal(t, []int{0}, st.Tokens[0][:1], "equal importance must not displace an active token")
}

func TestEvictionState_GrowPreservesTokensAndOnlyExpands(t *testing.T) {
	st := NewEvictionState(2, 2)
	require.NoError(t, st.Admit(0, 1, 2, []float64{1, 1}))

	st.Grow(5)
	assert.Equal(t, 5, st.Capacity)
	assert.Equal(t, []int{0, 1}, st.Tokens[0][:2])
	assert.Equal(t, 2, st.Counts[0])

	st.Grow(3)
	assert.Equal(t, 5, st.Capacity, "capacity never shrinks")
}

func TestEvictionState_AdmitGrowsForLargerBudget(t *testing.T) {
	// Budgets rise with position, so a later step may offer a budget above
	// the current capacity.
	st := NewEvictionState(1, 1)
	imp := []float64{0.1, 0.2, 0.3}
	require.NoError(t, st.Admit(0, 1, 2, imp))
	require.NoError(t, st.Admit(0, 2, 3, imp))
	assert.Equal(t, 3, st.Counts[0])
	assert.ElementsMatch(t, []int{0, 1, 2}, st.Tokens[0][:3])
}

func TestEvictionState_CorruptCountIsError(t *testing.T) {
	st := NewEvictionState(1, 2)
	st.Counts[0] = 5
	err := st.Admit(0, 1, 2, []float64{1, 1})
	require.Error(t, err)
}

func TestEvictionState_MaskRowOpensOnlyActiveTokens(t *testing.T) {
	st := NewEvictionState(1, 3)
	require.NoError(t, st.Admit(0, 3, 3, []float64{1, 0, 0, 1, 1}))

	dst := []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	st.MaskRow(0, dst)

	assert.Equal(t, 0.0, dst[0])
	assert.Equal(t, 0.0, dst[3])
	for _, c := range []int{1, 2, 4} {
		assert.True(t, math.IsInf(dst[c], -1), "position %d is not active and must stay masked", c)
	}
}

func TestEvictionState_CloneDoesNotAlias(t *testing.T) {
	st := NewEvictionState(1, 2)
	require.NoError(t, st.Admit(0, 1, 2, []float64{1, 1}))

	c := st.Clone()
	require.NoError(t, st.Admit(0, 2, 2, []float64{0.0, 0.0, 9.0}))

	assert.Equal(t, []int{0, 1}, c.Tokens[0][:2], "clone must be unaffected by later admissions")
}

func TestMaxPool1D_SamePadding(t *testing.T) {
	got := maxPool1D([]float64{1, 5, 2, 0, 3}, 3)
	assert.Equal(t, []float64{5, 5, 5, 3, 3}, got)

	// Kernel wider than the input degenerates to the global max.
	got = maxPool1D([]float64{2, 7}, 7)
	assert.Equal(t, []float64{7, 7}, got)
}
