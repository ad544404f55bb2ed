package attn

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Layer is one instrumented causal self-attention layer. It replaces a
// standard decoder attention layer and, per its configured policy, decides
// which key/value positions each query may attend to, tracking the effective
// sparsity it introduces.
//
// Layer 0 always runs dense regardless of policy: it seeds the importance
// signals downstream layers consume.
type Layer struct {
	cfg      LayerConfig
	layerIdx int

	// isProducer marks the first layer of a producer group; consumer layers
	// read the importance scratch it wrote earlier in the same step.
	isProducer bool

	policy         Policy
	schedule       string
	aggression     float64
	minSparseIndex int
	inferenceMode  bool

	// projection weights, (outDim, inDim) row-major
	wq, wk, wv, wo *mat.Dense

	rng *PartitionedRNG

	forwarded     bool
	sparsityVal   *float64
	lastSelection *Tensor
}

// ForwardInput carries everything a forward call consumes. HiddenStates is
// (batch, 1, seqLen, hiddenSize). AttentionMask, Cache, Cos/Sin and Step are
// optional; a nil AttentionMask means the causal mask is built internally,
// nil Cos/Sin skips rotary application. PositionIDs selects the Cos/Sin row
// for each token of the call (one id per query row); nil means call-relative
// rows, for tables pre-gathered by the caller.
type ForwardInput struct {
	HiddenStates  *Tensor
	AttentionMask *Tensor
	PositionIDs   []int
	Cache         *Cache
	UseCache      bool
	Cos           [][]float64
	Sin           [][]float64
	Step          *StepContext

	// OutputAttentions returns the softmaxed attention weights.
	OutputAttentions bool
}

// ForwardOutput is the attention result plus the (possibly updated) cache.
type ForwardOutput struct {
	Output  *Tensor // (batch, 1, seqLen, hiddenSize)
	Weights *Tensor // nil unless OutputAttentions
	Cache   *Cache
}

// forwardState bundles the per-call operands the policy branches share.
type forwardState struct {
	in     ForwardInput
	q      *Tensor // (batch, heads, qLen, headDim), rotary applied
	k      *Tensor // (batch, heads, kvLen, headDim), cache-merged, repeated
	scores *Tensor // QK^T / sqrt(d)
	causal *Tensor // (batch, 1, qLen, kvLen)
}

// NewLayer constructs a layer with identity projections; collaborators graft
// real checkpoint weights via SetProjections. rng may be nil, in which case
// the layer derives its own deterministic stream from seed 0.
func NewLayer(cfg LayerConfig, layerIdx int, rng *PartitionedRNG) (*Layer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(layerIdx); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewPartitionedRNG(0)
	}
	return &Layer{
		cfg:            cfg,
		layerIdx:       layerIdx,
		isProducer:     layerIdx == 0,
		policy:         PolicyDense,
		minSparseIndex: cfg.MinSparseIndex,
		rng:            rng,
		wq:             eye(cfg.HiddenSize, cfg.HiddenSize),
		wk:             eye(cfg.NumKVHeads*cfg.HeadDim, cfg.HiddenSize),
		wv:             eye(cfg.NumKVHeads*cfg.HeadDim, cfg.HiddenSize),
		wo:             eye(cfg.HiddenSize, cfg.HiddenSize),
	}, nil
}

func eye(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows && i < cols; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// LayerIdx returns the layer's position in the stack.
func (l *Layer) LayerIdx() int { return l.layerIdx }

// Policy returns the configured sparsification policy.
func (l *Layer) Policy() Policy { return l.policy }

// Aggression returns the configured drop fraction.
func (l *Layer) Aggression() float64 { return l.aggression }

// Schedule returns the token-sparsity schedule name the aggression was
// derived from, or "" when aggression was never bound.
func (l *Layer) Schedule() string { return l.schedule }

// IsProducer reports whether this layer heads a producer group.
func (l *Layer) IsProducer() bool { return l.isProducer }

func (l *Layer) mutable() error {
	if l.forwarded {
		return stateErrorf(l.layerIdx, "reconfiguration after first forward call is forbidden")
	}
	return nil
}

// SetPolicy binds the sparsification policy by name. Must happen before the
// first forward call.
func (l *Layer) SetPolicy(name string) error {
	if err := l.mutable(); err != nil {
		return err
	}
	p, err := ParsePolicy(name)
	if err != nil {
		return configErrorf(l.layerIdx, "unknown policy %q", name)
	}
	l.policy = p
	return nil
}

// SetTokenSparsitySchedule derives this layer's aggression from the named
// schedule. Must happen before the first forward call.
func (l *Layer) SetTokenSparsitySchedule(name string) error {
	if err := l.mutable(); err != nil {
		return err
	}
	agg, err := ScheduleAggression(name, l.layerIdx)
	if err != nil {
		return err
	}
	l.schedule = name
	l.aggression = agg
	return nil
}

// SetMinKeptPrefix sets the always-kept prefix length.
func (l *Layer) SetMinKeptPrefix(n int) error {
	if err := l.mutable(); err != nil {
		return err
	}
	if n < 0 {
		return configErrorf(l.layerIdx, "min kept prefix must be non-negative, got %d", n)
	}
	l.minSparseIndex = n
	return nil
}

// SetInferenceMode toggles recording of per-layer activation-magnitude
// scratch under the lookahead policy.
func (l *Layer) SetInferenceMode(on bool) error {
	if err := l.mutable(); err != nil {
		return err
	}
	l.inferenceMode = on
	return nil
}

// SetProjections grafts checkpoint projection weights onto the layer.
// Weights are (outDim, inDim): q/o are (hiddenSize, hiddenSize), k/v are
// (kvHeads*headDim, hiddenSize).
func (l *Layer) SetProjections(wq, wk, wv, wo *mat.Dense) error {
	if err := l.mutable(); err != nil {
		return err
	}
	kvDim := l.cfg.NumKVHeads * l.cfg.HeadDim
	for _, check := range []struct {
		name string
		w    *mat.Dense
		rows int
	}{
		{"q_proj", wq, l.cfg.HiddenSize},
		{"k_proj", wk, kvDim},
		{"v_proj", wv, kvDim},
		{"o_proj", wo, l.cfg.HiddenSize},
	} {
		r, c := check.w.Dims()
		if r != check.rows || c != l.cfg.HiddenSize {
			return configErrorf(l.layerIdx, "%s weight is %dx%d, want %dx%d", check.name, r, c, check.rows, l.cfg.HiddenSize)
		}
	}
	l.wq, l.wk, l.wv, l.wo = wq, wk, wv, wo
	return nil
}

// EffectiveSparsity reports the diagnostic computed on the layer's first
// masked forward call. ok is false before that.
func (l *Layer) EffectiveSparsity() (pct float64, ok bool) {
	if l.sparsityVal == nil {
		return 0, false
	}
	return *l.sparsityVal, true
}

// LastSelectionMask returns the most recent selection mask, for debugging
// and analysis only. Nil when the last call applied no selection.
func (l *Layer) LastSelectionMask() *Tensor { return l.lastSelection }

// Forward runs one attention step: full-sequence prefill when the hidden
// states carry more than one token, single-token decode otherwise.
func (l *Layer) Forward(in ForwardInput) (ForwardOutput, error) {
	hs := in.HiddenStates
	if hs == nil || hs.Heads != 1 {
		return ForwardOutput{}, configErrorf(l.layerIdx, "hidden states must be (batch, 1, seqLen, hiddenSize)")
	}
	if hs.Cols != l.cfg.HiddenSize {
		return ForwardOutput{}, configErrorf(l.layerIdx, "hidden size %d != configured %d", hs.Cols, l.cfg.HiddenSize)
	}
	batch, qLen := hs.Batch, hs.Rows
	if in.PositionIDs != nil && len(in.PositionIDs) != qLen {
		return ForwardOutput{}, configErrorf(l.layerIdx, "position ids length %d != query length %d", len(in.PositionIDs), qLen)
	}
	l.forwarded = true

	q, k, v := l.project(hs)
	if in.Cos != nil && in.Sin != nil {
		ApplyRotary(q, k, in.Cos, in.Sin, in.PositionIDs)
	}

	allK, allV := k, v
	if in.UseCache && in.Cache != nil {
		var err error
		allK, allV, err = in.Cache.Append(l.layerIdx, k, v)
		if err != nil {
			return ForwardOutput{}, err
		}
	}
	fullK := RepeatKV(allK, l.cfg.kvGroups())
	fullV := RepeatKV(allV, l.cfg.kvGroups())
	kvLen := fullK.Rows

	causal := in.AttentionMask
	if causal == nil {
		causal = NewCausalMask(batch, qLen, kvLen)
	}

	scores := MatMulNT(q, fullK)
	scores.Scale(1 / math.Sqrt(float64(l.cfg.HeadDim)))

	st := forwardState{in: in, q: q, k: fullK, scores: scores, causal: causal}

	var sel *Tensor
	if l.layerIdx > 0 {
		var err error
		sel, err = l.buildSelection(st)
		if err != nil {
			return ForwardOutput{}, err
		}
	}

	wantShape := scores.Shape()
	logits := scores.Clone()
	if sel != nil {
		if err := l.checkMaskShape(sel.Shape(), wantShape); err != nil {
			return ForwardOutput{}, err
		}
		logits.Add(sel)
	}
	if qLen != 1 {
		// Decode omits the causal term: a single new token attends only the
		// past by construction.
		if err := l.checkMaskShape(causal.Shape(), wantShape); err != nil {
			return ForwardOutput{}, err
		}
		logits.Add(causal)
	}
	if logits.Shape() != wantShape {
		return ForwardOutput{}, &ShapeError{Layer: l.layerIdx, Policy: l.policy, Got: logits.Shape(), Want: wantShape}
	}

	weights := logits
	weights.SoftmaxRows()
	attnOut := MatMulNN(weights, fullV)
	output := l.projectOut(attnOut)

	l.writeScratch(in, weights, causal)
	l.account(sel, causal, qLen)

	out := ForwardOutput{Output: output}
	if in.UseCache {
		out.Cache = in.Cache
	}
	if in.OutputAttentions {
		out.Weights = weights
	}
	return out, nil
}

// project applies the Q/K/V projections and splits heads:
// (batch, 1, seq, hidden) -> (batch, heads, seq, headDim).
func (l *Layer) project(hs *Tensor) (q, k, v *Tensor) {
	batch, seq := hs.Batch, hs.Rows
	q = NewTensor(batch, l.cfg.NumHeads, seq, l.cfg.HeadDim)
	k = NewTensor(batch, l.cfg.NumKVHeads, seq, l.cfg.HeadDim)
	v = NewTensor(batch, l.cfg.NumKVHeads, seq, l.cfg.HeadDim)
	for b := 0; b < batch; b++ {
		x := hs.Mat(b, 0)
		splitHeads(q, b, linearTP(x, l.wq, l.cfg.PretrainingTP))
		splitHeads(k, b, linearTP(x, l.wk, l.cfg.PretrainingTP))
		splitHeads(v, b, linearTP(x, l.wv, l.cfg.PretrainingTP))
	}
	return q, k, v
}

func splitHeads(dst *Tensor, b int, flat *mat.Dense) {
	for h := 0; h < dst.Heads; h++ {
		for r := 0; r < dst.Rows; r++ {
			row := dst.Row(b, h, r)
			for c := 0; c < dst.Cols; c++ {
				row[c] = flat.At(r, h*dst.Cols+c)
			}
		}
	}
}

// projectOut merges heads and applies the output projection.
func (l *Layer) projectOut(attnOut *Tensor) *Tensor {
	batch, seq := attnOut.Batch, attnOut.Rows
	out := NewTensor(batch, 1, seq, l.cfg.HiddenSize)
	for b := 0; b < batch; b++ {
		merged := mat.NewDense(seq, l.cfg.HiddenSize, nil)
		for h := 0; h < attnOut.Heads; h++ {
			for r := 0; r < seq; r++ {
				src := attnOut.Row(b, h, r)
				for c := 0; c < attnOut.Cols; c++ {
					merged.Set(r, h*attnOut.Cols+c, src[c])
				}
			}
		}
		proj := linearSumTP(merged, l.wo, l.cfg.PretrainingTP)
		for r := 0; r < seq; r++ {
			copy(out.Row(b, 0, r), proj.RawRowView(r))
		}
	}
	return out
}

// checkMaskShape verifies a mask matches the logits shape; the head
// dimension may be 1 (batch-level masks broadcast across heads).
func (l *Layer) checkMaskShape(got, want [4]int) error {
	if got[0] != want[0] || got[2] != want[2] || got[3] != want[3] ||
		(got[1] != want[1] && got[1] != 1) {
		return &ShapeError{Layer: l.layerIdx, Policy: l.policy, Got: got, Want: want}
	}
	return nil
}

// buildSelection dispatches on the policy and returns the additive selection
// mask, or nil when the policy applies no masking beyond causality.
// The switch is exhaustive over the closed Policy enum.
func (l *Layer) buildSelection(st forwardState) (*Tensor, error) {
	switch l.policy {
	case PolicyDense:
		return nil, nil
	case PolicyOracle, PolicyRandom, PolicyInitOracle, PolicyLookaheadOracle:
		if l.aggression <= 0 {
			return nil, nil
		}
		return l.selOracle(st)
	case PolicyStreamingLLM:
		if l.aggression <= 0 {
			return nil, nil
		}
		return l.selStreaming(st), nil
	case PolicyOracleGrouped:
		if l.aggression <= 0 {
			return nil, nil
		}
		return l.selGrouped(st), nil
	case PolicyQuest:
		if l.aggression <= 0 {
			return nil, nil
		}
		return l.selQuest(st), nil
	case PolicySnapKV, PolicyH2O:
		return l.selIncremental(st)
	}
	return nil, configErrorf(l.layerIdx, "unknown policy %q", l.policy)
}

// selOracle ranks keys by a softmax importance signal: the layer's own
// attention mass (oracle), uniform random draws (random), or the producer
// layer's signal averaged over heads (init/lookahead variants).
func (l *Layer) selOracle(st forwardState) (*Tensor, error) {
	scores, causal := st.scores, st.causal
	batch, heads, qLen, kvLen := scores.Batch, scores.Heads, scores.Rows, scores.Cols
	var imp *Tensor
	switch l.policy {
	case PolicyRandom:
		imp = NewTensor(batch, heads, qLen, kvLen)
		rng := l.rng.ForLayer(l.layerIdx)
		for i := range imp.Data {
			imp.Data[i] = rng.Float64()
		}
		imp.Add(causal)
		imp.SoftmaxRows()
	case PolicyInitOracle, PolicyLookaheadOracle:
		if st.in.Step == nil {
			return nil, stateErrorf(l.layerIdx, "policy %s needs a step context carrying producer importance", l.policy)
		}
		produced, err := st.in.Step.ReadInitImportance(l.layerIdx)
		if err != nil {
			return nil, err
		}
		if produced.Batch != batch || produced.Rows < qLen || produced.Cols != kvLen {
			return nil, stateErrorf(l.layerIdx, "producer importance shape %v incompatible with scores %v", produced.Shape(), scores.Shape())
		}
		imp = headMeanBroadcast(produced, heads)
	default: // PolicyOracle
		imp = scores.Clone()
		imp.Add(causal)
		imp.SoftmaxRows()
		// Second softmax matches the reference importance definition; ranks
		// are unchanged by it.
		imp.SoftmaxRows()
	}
	ranks := make([][][][]int, batch)
	rowOff := imp.Rows - qLen
	for b := 0; b < batch; b++ {
		ranks[b] = make([][][]int, heads)
		for h := 0; h < heads; h++ {
			ranks[b][h] = make([][]int, qLen)
			for r := 0; r < qLen; r++ {
				ranks[b][h][r] = argsortDesc(imp.Row(b, h, rowOff+r))
			}
		}
	}
	return selectionFromRanks(ranks, batch, heads, qLen, kvLen, l.minSparseIndex, l.aggression), nil
}

// headMeanBroadcast averages an importance tensor over heads and broadcasts
// the mean back to the requested head count.
func headMeanBroadcast(t *Tensor, heads int) *Tensor {
	out := NewTensor(t.Batch, heads, t.Rows, t.Cols)
	for b := 0; b < t.Batch; b++ {
		for r := 0; r < t.Rows; r++ {
			mean := make([]float64, t.Cols)
			for h := 0; h < t.Heads; h++ {
				src := t.Row(b, h, r)
				for c := range mean {
					mean[c] += src[c]
				}
			}
			for c := range mean {
				mean[c] /= float64(t.Heads)
			}
			for h := 0; h < heads; h++ {
				copy(out.Row(b, h, r), mean)
			}
		}
	}
	return out
}

// selStreaming applies the fixed sink-plus-recency rank order, identical for
// every batch and head.
func (l *Layer) selStreaming(st forwardState) *Tensor {
	scores := st.scores
	batch, heads, qLen, kvLen := scores.Batch, scores.Heads, scores.Rows, scores.Cols
	tail := streamingRanks(kvLen)[kvLen-qLen:]
	ranks := make([][][][]int, batch)
	for b := 0; b < batch; b++ {
		ranks[b] = make([][][]int, heads)
		for h := 0; h < heads; h++ {
			ranks[b][h] = tail
		}
	}
	return selectionFromRanks(ranks, batch, heads, qLen, kvLen, l.minSparseIndex, l.aggression)
}

// selGrouped ranks keys by attention over head-dimension-downsampled queries
// and keys: contiguous groups of GroupFactor channels are summed and divided
// by the factor, cutting the score matmul cost while preserving coarse
// similarity structure.
func (l *Layer) selGrouped(st forwardState) *Tensor {
	q, k, causal := st.q, st.k, st.causal
	g := l.cfg.GroupFactor
	gq := groupChannels(q, g)
	gk := groupChannels(k, g)
	gscores := MatMulNT(gq, gk)
	gscores.Scale(1 / math.Sqrt(float64(l.cfg.HeadDim/g)))
	gscores.Add(causal)
	gscores.SoftmaxRows()

	batch, heads, qLen, kvLen := gscores.Batch, gscores.Heads, gscores.Rows, gscores.Cols
	ranks := make([][][][]int, batch)
	for b := 0; b < batch; b++ {
		ranks[b] = make([][][]int, heads)
		for h := 0; h < heads; h++ {
			ranks[b][h] = make([][]int, qLen)
			for r := 0; r < qLen; r++ {
				ranks[b][h][r] = argsortDesc(gscores.Row(b, h, r))
			}
		}
	}
	return selectionFromRanks(ranks, batch, heads, qLen, kvLen, l.minSparseIndex, l.aggression)
}

// groupChannels sums contiguous groups of g channels and divides by g:
// (b, h, rows, d) -> (b, h, rows, d/g).
func groupChannels(t *Tensor, g int) *Tensor {
	out := NewTensor(t.Batch, t.Heads, t.Rows, t.Cols/g)
	for b := 0; b < t.Batch; b++ {
		for h := 0; h < t.Heads; h++ {
			for r := 0; r < t.Rows; r++ {
				src := t.Row(b, h, r)
				dst := out.Row(b, h, r)
				for c := range dst {
					var s float64
					for i := 0; i < g; i++ {
						s += src[c*g+i]
					}
					dst[c] = s / float64(g)
				}
			}
		}
	}
	return out
}

// selQuest ranks keys by page-level upper bounds: keys are max-pooled per
// fixed-size page, scored against element-wise |q|, and the page score is
// broadcast to every token in the page. Contexts shorter than one page fall
// back to deterministic random ranking.
func (l *Layer) selQuest(st forwardState) *Tensor {
	q, k, causal := st.q, st.k, st.causal
	batch, heads, qLen := q.Batch, q.Heads, q.Rows
	kvLen := k.Rows
	pageSize := l.cfg.PageSize

	ranks := make([][][][]int, batch)
	for b := 0; b < batch; b++ {
		ranks[b] = make([][][]int, heads)
		for h := 0; h < heads; h++ {
			ranks[b][h] = make([][]int, qLen)
		}
	}

	if kvLen < pageSize {
		// No full page exists yet; rank randomly so dropping is unbiased.
		rng := l.rng.ForLayer(l.layerIdx)
		randomRanks(ranks, causal, rng, batch, heads, qLen, kvLen)
		return selectionFromRanks(ranks, batch, heads, qLen, kvLen, l.minSparseIndex, l.aggression)
	}

	numPages := (kvLen + pageSize - 1) / pageSize
	dim := k.Cols
	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			// Page representation: channel-wise max over each page's keys.
			pageMax := make([][]float64, numPages)
			for p := range pageMax {
				rep := make([]float64, dim)
				for c := range rep {
					rep[c] = math.Inf(-1)
				}
				for r := p * pageSize; r < (p+1)*pageSize && r < kvLen; r++ {
					row := k.Row(b, h, r)
					for c := range rep {
						if row[c] > rep[c] {
							rep[c] = row[c]
						}
					}
				}
				pageMax[p] = rep
			}
			scale := 1 / math.Sqrt(float64(dim))
			for r := 0; r < qLen; r++ {
				qrow := q.Row(b, h, r)
				broadcast := make([]float64, kvLen)
				for p := 0; p < numPages; p++ {
					var s float64
					for c := 0; c < dim; c++ {
						s += math.Abs(qrow[c]) * pageMax[p][c]
					}
					s *= scale
					for t := p * pageSize; t < (p+1)*pageSize && t < kvLen; t++ {
						broadcast[t] = s
					}
				}
				causalRow := causal.Row(b, 0, r)
				for c := range broadcast {
					broadcast[c] += causalRow[c]
				}
				ranks[b][h][r] = argsortDesc(broadcast)
			}
		}
	}
	return selectionFromRanks(ranks, batch, heads, qLen, kvLen, l.minSparseIndex, l.aggression)
}

func randomRanks(ranks [][][][]int, causal *Tensor, rng *rand.Rand, batch, heads, qLen, kvLen int) {
	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			for r := 0; r < qLen; r++ {
				row := make([]float64, kvLen)
				causalRow := causal.Row(b, 0, r)
				for c := range row {
					row[c] = rng.Float64() + causalRow[c]
				}
				ranks[b][h][r] = argsortDesc(row)
			}
		}
	}
}

// writeScratch records producer/consumer signals after attention: the
// init/lookahead importance (re-normalized attention mass) and, under
// inference mode, the per-layer activation magnitude used by lookahead
// analysis.
func (l *Layer) writeScratch(in ForwardInput, weights, causal *Tensor) {
	if in.Step == nil {
		return
	}
	switch l.policy {
	case PolicyInitOracle:
		if l.layerIdx == 0 {
			in.Step.WriteInitImportance(renormImportance(weights, causal))
		}
	case PolicyLookaheadOracle:
		// Every lookahead layer refreshes the shared signal, so deeper
		// consumers see the most recent attention distribution.
		in.Step.WriteInitImportance(renormImportance(weights, causal))
		if l.inferenceMode {
			in.Step.SetActivationMagnitude(l.layerIdx, columnSums(weights))
		}
	case PolicyDense, PolicyOracle, PolicyRandom, PolicyStreamingLLM,
		PolicyOracleGrouped, PolicyQuest, PolicySnapKV, PolicyH2O:
	}
}

// renormImportance re-applies the causal mask to post-softmax weights and
// normalizes again, matching the reference importance definition.
func renormImportance(weights, causal *Tensor) *Tensor {
	imp := weights.Clone()
	imp.Add(causal)
	imp.SoftmaxRows()
	return imp
}

// columnSums sums attention mass over the query dimension:
// (b, h, q, k) -> (b, h, 1, k).
func columnSums(t *Tensor) *Tensor {
	out := NewTensor(t.Batch, t.Heads, 1, t.Cols)
	for b := 0; b < t.Batch; b++ {
		for h := 0; h < t.Heads; h++ {
			dst := out.Row(b, h, 0)
			for r := 0; r < t.Rows; r++ {
				src := t.Row(b, h, r)
				for c := range dst {
					dst[c] += src[c]
				}
			}
		}
	}
	return out
}

// account records the selection mask and, on the first masked call, the
// effective-sparsity diagnostic.
func (l *Layer) account(sel, causal *Tensor, qLen int) {
	if sel != nil {
		l.lastSelection = sel
		if l.sparsityVal == nil {
			v := effectiveSparsity(sel, causal)
			l.sparsityVal = &v
			logrus.Infof("layer %d (%s): effective sparsity %.2f%% at query length %d", l.layerIdx, l.policy, v, qLen)
		}
	}
	if l.layerIdx == 0 && l.sparsityVal == nil {
		zero := 0.0
		l.sparsityVal = &zero
	}
}
