package attn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy_RoundTripsEveryName(t *testing.T) {
	names := []string{
		"dense", "oracle", "random", "init_oracle", "lookahead_oracle",
		"streamingLLM", "oracle_grouped", "quest", "snapkv", "h2o_true",
	}
	for _, name := range names {
		p, err := ParsePolicy(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.String())
	}
}

func TestParsePolicy_RejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "Dense", "snap_kv", "h2o"} {
		if _, err := ParsePolicy(name); err == nil {
			t.Errorf("policy %q should be rejected", name)
		}
	}
}

func TestPolicyClassification(t *testing.T) {
	assert.True(t, PolicySnapKV.UsesActiveSet())
	assert.True(t, PolicyH2O.UsesActiveSet())
	assert.False(t, PolicyOracle.UsesActiveSet())
	assert.False(t, PolicyDense.UsesActiveSet())

	assert.True(t, PolicyInitOracle.ReadsProducer())
	assert.True(t, PolicyLookaheadOracle.ReadsProducer())
	assert.False(t, PolicyQuest.ReadsProducer())
}

func TestPartitionedRNG_DeterministicPerLayer(t *testing.T) {
	a := NewPartitionedRNG(99)
	b := NewPartitionedRNG(99)

	assert.Equal(t, a.ForLayer(3).Float64(), b.ForLayer(3).Float64(),
		"same seed and layer must draw identically")

	// The same layer index returns the cached stream, not a reset one.
	r := a.ForLayer(5)
	if a.ForLayer(5) != r {
		t.Fatal("ForLayer must cache per-layer streams")
	}

	// Distinct layers draw from distinct streams.
	c, d := NewPartitionedRNG(1), NewPartitionedRNG(1)
	assert.NotEqual(t, c.ForLayer(0).Float64(), d.ForLayer(1).Float64())
}
