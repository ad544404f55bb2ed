package attn

import "github.com/sirupsen/logrus"

// StepContext is the per-step scratch shared between producer and consumer
// layers. A producer layer populates it during its own forward pass; consumer
// layers read it later in the same step. It is valid for exactly one forward
// step across the stack; allocate a fresh one per step.
type StepContext struct {
	initImportance *Tensor
	actMagn        map[int]*Tensor
}

// NewStepContext returns an empty per-step context.
func NewStepContext() *StepContext {
	return &StepContext{actMagn: make(map[int]*Tensor)}
}

// WriteInitImportance records the producer's importance signal.
func (c *StepContext) WriteInitImportance(t *Tensor) {
	c.initImportance = t
}

// ReadInitImportance returns the producer importance signal. Reading before
// any producer wrote in this step is a StateError: layer ordering within the
// step was violated.
func (c *StepContext) ReadInitImportance(readerLayer int) (*Tensor, error) {
	if c.initImportance == nil {
		return nil, stateErrorf(readerLayer, "producer importance read before any producer layer wrote it this step")
	}
	return c.initImportance, nil
}

// SetActivationMagnitude records a layer's summed attention mass.
func (c *StepContext) SetActivationMagnitude(layerIdx int, t *Tensor) {
	c.actMagn[layerIdx] = t
}

// ActivationMagnitude returns a layer's recorded attention mass, if any.
func (c *StepContext) ActivationMagnitude(layerIdx int) (*Tensor, bool) {
	t, ok := c.actMagn[layerIdx]
	return t, ok
}

// Stack owns the attention layers of one decoder and their shared RNG.
// Layers are partitioned into producer groups of producerFrequency layers;
// the first layer of each group is the producer whose step-context scratch
// the rest of the group consumes. Layers must be invoked in index order
// within a step so producers run before their consumers.
type Stack struct {
	Layers            []*Layer
	producerFrequency int
	rng               *PartitionedRNG
}

// NewStack builds numLayers identically configured layers.
// producerFrequency <= 0 means a single producer group rooted at layer 0.
func NewStack(cfg LayerConfig, numLayers, producerFrequency int, seed int64) (*Stack, error) {
	if numLayers <= 0 {
		return nil, configErrorf(-1, "need at least one layer, got %d", numLayers)
	}
	if producerFrequency <= 0 {
		producerFrequency = numLayers
	}
	s := &Stack{
		producerFrequency: producerFrequency,
		rng:               NewPartitionedRNG(seed),
	}
	for i := 0; i < numLayers; i++ {
		l, err := NewLayer(cfg, i, s.rng)
		if err != nil {
			return nil, err
		}
		l.isProducer = i%producerFrequency == 0
		if l.isProducer {
			logrus.Debugf("layer %d: producer for group starting at %d", i, i)
		}
		s.Layers = append(s.Layers, l)
	}
	return s, nil
}

// Configure applies a validated sparsity bundle to every layer. It must run
// before the first forward call; mid-sequence reconfiguration surfaces as a
// StateError from the first already-forwarded layer.
func (s *Stack) Configure(b *SparsityBundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	for _, l := range s.Layers {
		if err := l.SetPolicy(b.Policy); err != nil {
			return err
		}
		if err := l.SetTokenSparsitySchedule(b.Schedule); err != nil {
			return err
		}
		if b.MinSparseIndex != nil {
			if err := l.SetMinKeptPrefix(*b.MinSparseIndex); err != nil {
				return err
			}
		}
		if err := l.SetInferenceMode(b.InferenceMode); err != nil {
			return err
		}
	}
	logrus.Infof("stack configured: policy=%s schedule=%s layers=%d producer_frequency=%d",
		b.Policy, b.Schedule, len(s.Layers), s.producerFrequency)
	return nil
}

// NewStepContext returns the fresh shared scratch for one forward step
// across the stack.
func (s *Stack) NewStepContext() *StepContext {
	return NewStepContext()
}
