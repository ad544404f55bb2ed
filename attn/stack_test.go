package attn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStack_ProducerGrouping(t *testing.T) {
	s, err := NewStack(smallConfig(), 6, 2, 0)
	require.NoError(t, err)
	require.Len(t, s.Layers, 6)
	for i, l := range s.Layers {
		assert.Equal(t, i%2 == 0, l.IsProducer(), "layer %d", i)
		assert.Equal(t, i, l.LayerIdx())
	}

	// Frequency <= 0 collapses to a single group rooted at layer 0.
	s, err = NewStack(smallConfig(), 4, 0, 0)
	require.NoError(t, err)
	for i, l := range s.Layers {
		assert.Equal(t, i == 0, l.IsProducer(), "layer %d", i)
	}

	_, err = NewStack(smallConfig(), 0, 1, 0)
	require.Error(t, err)
}

func TestStackConfigure_BindsEveryLayer(t *testing.T) {
	s, err := NewStack(smallConfig(), 3, 1, 0)
	require.NoError(t, err)

	msi := 2
	require.NoError(t, s.Configure(&SparsityBundle{
		Policy:         "oracle",
		Schedule:       "fixed_40pc",
		MinSparseIndex: &msi,
	}))

	assert.Equal(t, PolicyOracle, s.Layers[1].Policy())
	assert.Equal(t, "fixed_40pc", s.Layers[1].Schedule())
	assert.Equal(t, 0.0, s.Layers[0].Aggression())
	assert.InDelta(t, 0.4, s.Layers[2].Aggression(), 1e-12)
}

func TestStackConfigure_RejectsInvalidBundle(t *testing.T) {
	s, err := NewStack(smallConfig(), 2, 1, 0)
	require.NoError(t, err)

	err = s.Configure(&SparsityBundle{Policy: "oracle", Schedule: "sometimes"})
	require.Error(t, err)
	var ce *ConfigError
	assert.True(t, errors.As(err, &ce), "want ConfigError, got %T", err)
}

func TestStackConfigure_AfterForwardIsStateError(t *testing.T) {
	s, err := NewStack(smallConfig(), 2, 1, 0)
	require.NoError(t, err)
	_, err = s.Layers[0].Forward(ForwardInput{HiddenStates: randomHidden(1, 4, 8, 1)})
	require.NoError(t, err)

	err = s.Configure(&SparsityBundle{Policy: "oracle", Schedule: "fixed_50pc"})
	require.Error(t, err)
	var se *StateError
	assert.True(t, errors.As(err, &se), "want StateError, got %T", err)
}

func TestStack_InitOracleProducerFeedsConsumers(t *testing.T) {
	// GIVEN a 3-layer stack under init_oracle
	s, err := NewStack(smallConfig(), 3, 3, 0)
	require.NoError(t, err)
	require.NoError(t, s.Configure(&SparsityBundle{Policy: "init_oracle", Schedule: "fixed_50pc"}))

	// WHEN running one prefill step in layer order with a shared step context
	step := s.NewStepContext()
	hs := randomHidden(1, 8, 8, 77)
	for _, l := range s.Layers {
		out, ferr := l.Forward(ForwardInput{HiddenStates: hs, Step: step})
		require.NoError(t, ferr, "layer %d", l.LayerIdx())
		hs = out.Output
	}

	// THEN the consumer layers built real selections from the produced signal
	for _, l := range s.Layers[1:] {
		sel := l.LastSelectionMask()
		require.NotNil(t, sel, "layer %d should have masked", l.LayerIdx())
		assertCausalSelection(t, sel, 8, 8, 0)
	}
}

func TestStack_LookaheadRecordsActivationMagnitude(t *testing.T) {
	s, err := NewStack(smallConfig(), 2, 2, 0)
	require.NoError(t, err)
	require.NoError(t, s.Configure(&SparsityBundle{
		Policy:        "lookahead_oracle",
		Schedule:      "fixed_50pc",
		InferenceMode: true,
	}))

	step := s.NewStepContext()
	hs := randomHidden(1, 6, 8, 19)
	for _, l := range s.Layers {
		out, ferr := l.Forward(ForwardInput{HiddenStates: hs, Step: step})
		require.NoError(t, ferr, "layer %d", l.LayerIdx())
		hs = out.Output
	}

	for i := range s.Layers {
		mag, ok := step.ActivationMagnitude(i)
		require.True(t, ok, "layer %d should record attention mass", i)
		assert.Equal(t, [4]int{1, 2, 1, 6}, mag.Shape())
	}
}

func TestStepContext_ReadBeforeWriteIsStateError(t *testing.T) {
	step := NewStepContext()
	_, err := step.ReadInitImportance(4)
	require.Error(t, err)
	var se *StateError
	require.True(t, errors.As(err, &se), "want StateError, got %T", err)
	assert.Equal(t, 4, se.Layer)
}

func TestStepContext_IsPerStep(t *testing.T) {
	step := NewStepContext()
	step.WriteInitImportance(NewFilled(1, 1, 2, 2, 0.5))
	got, err := step.ReadInitImportance(1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.At(0, 0, 0, 0))

	// A fresh context for the next step starts empty again.
	_, err = NewStepContext().ReadInitImportance(1)
	require.Error(t, err)
}
