package attn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveSparsity_DecodeRow(t *testing.T) {
	// One query over 10 fully reachable keys, selection keeps positions 0-1:
	// 8 of 10 available keys suppressed.
	causal := NewCausalMask(1, 1, 10)
	sel := NewFilled(1, 1, 1, 10, math.Inf(-1))
	sel.Set(0, 0, 0, 0, 0)
	sel.Set(0, 0, 0, 1, 0)

	assert.InDelta(t, 80.0, effectiveSparsity(sel, causal), 1e-9)
}

func TestEffectiveSparsity_AveragesOverRows(t *testing.T) {
	// Row 0 keeps its only reachable key (0%); row 1 keeps 1 of 2 (50%).
	causal := NewCausalMask(1, 2, 2)
	sel := NewFilled(1, 1, 2, 2, math.Inf(-1))
	sel.Set(0, 0, 0, 0, 0)
	sel.Set(0, 0, 1, 0, 0)

	assert.InDelta(t, 25.0, effectiveSparsity(sel, causal), 1e-9)
}

func TestEffectiveSparsity_CausallyMaskedPositionsDoNotCount(t *testing.T) {
	// A selection identical to the causal mask suppresses nothing extra.
	causal := NewCausalMask(1, 4, 4)
	assert.Equal(t, 0.0, effectiveSparsity(causal.Clone(), causal))
}

func TestEffectiveSparsity_AveragesOverHeads(t *testing.T) {
	causal := NewCausalMask(1, 1, 4)
	sel := NewFilled(1, 2, 1, 4, math.Inf(-1))
	// Head 0 keeps everything, head 1 keeps one key.
	for c := 0; c < 4; c++ {
		sel.Set(0, 0, 0, c, 0)
	}
	sel.Set(0, 1, 0, 0, 0)

	// (0% + 75%) / 2
	assert.InDelta(t, 37.5, effectiveSparsity(sel, causal), 1e-9)
}
