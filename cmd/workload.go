package cmd

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/sparse-attn/sparse-attn/attn"
)

// WorkloadConfig describes the synthetic single-sequence workload the CLI
// drives through an attention stack: one full-prompt prefill followed by a
// number of single-token decode steps.
type WorkloadConfig struct {
	NumLayers    int
	NumHeads     int
	NumKVHeads   int
	HeadDim      int
	GroupFactor  int // 0 leaves the layer default; must divide HeadDim
	PromptTokens int
	DecodeTokens int
	Seed         int64
}

// LayerReport is one layer's effective-sparsity measurement after the run.
type LayerReport struct {
	Layer      int
	Policy     string
	Sparsity   float64
	Aggression float64
}

// RunWorkload builds a stack from the bundle, feeds it a random prompt and
// decode tail, and reports the per-layer effective sparsity. Hidden states are
// drawn from a dedicated workload RNG so the draw sequence is independent of
// the policy RNG streams.
func RunWorkload(bundle *attn.SparsityBundle, cfg WorkloadConfig) ([]LayerReport, error) {
	layerCfg := attn.LayerConfig{
		NumHeads:    cfg.NumHeads,
		NumKVHeads:  cfg.NumKVHeads,
		HeadDim:     cfg.HeadDim,
		HiddenSize:  cfg.NumHeads * cfg.HeadDim,
		GroupFactor: cfg.GroupFactor,
	}
	layerCfg = bundle.ApplyToConfig(layerCfg)

	seed := cfg.Seed
	if bundle.Seed != nil {
		seed = *bundle.Seed
	}
	producerFrequency := 0
	if bundle.ProducerFrequency != nil {
		producerFrequency = *bundle.ProducerFrequency
	}

	stack, err := attn.NewStack(layerCfg, cfg.NumLayers, producerFrequency, seed)
	if err != nil {
		return nil, err
	}
	if err := stack.Configure(bundle); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	cache := attn.NewCache()

	if err := forwardStep(stack, cache, randomStates(rng, cfg.PromptTokens, layerCfg.HiddenSize)); err != nil {
		return nil, fmt.Errorf("prefill: %w", err)
	}
	for i := 0; i < cfg.DecodeTokens; i++ {
		if err := forwardStep(stack, cache, randomStates(rng, 1, layerCfg.HiddenSize)); err != nil {
			return nil, fmt.Errorf("decode step %d: %w", i, err)
		}
	}

	reports := make([]LayerReport, 0, cfg.NumLayers)
	for _, l := range stack.Layers {
		pct, ok := l.EffectiveSparsity()
		if !ok {
			logrus.Debugf("layer %d never applied a selection mask", l.LayerIdx())
		}
		reports = append(reports, LayerReport{
			Layer:      l.LayerIdx(),
			Policy:     l.Policy().String(),
			Sparsity:   pct,
			Aggression: l.Aggression(),
		})
	}
	return reports, nil
}

// forwardStep runs one step through every layer in index order, sharing a
// fresh step context so producer layers feed their consumers.
func forwardStep(stack *attn.Stack, cache *attn.Cache, hidden *attn.Tensor) error {
	step := stack.NewStepContext()
	for _, l := range stack.Layers {
		out, err := l.Forward(attn.ForwardInput{
			HiddenStates: hidden,
			Cache:        cache,
			UseCache:     true,
			Step:         step,
		})
		if err != nil {
			return err
		}
		hidden = out.Output
	}
	return nil
}

func randomStates(rng *rand.Rand, tokens, hidden int) *attn.Tensor {
	t := attn.NewTensor(1, 1, tokens, hidden)
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64()
	}
	return t
}
