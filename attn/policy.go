package attn

import "fmt"

// Policy selects the KV-cache sparsification strategy a layer applies on top
// of causal masking. It is a closed enum: every switch over Policy in this
// package is exhaustive, so adding a policy is a compile-time-checked change.
type Policy int

const (
	// PolicyDense applies no masking beyond causality.
	PolicyDense Policy = iota
	// PolicyOracle ranks keys by true softmax attention mass per query.
	PolicyOracle
	// PolicyRandom ranks keys by uniform random importance.
	PolicyRandom
	// PolicyInitOracle ranks keys by the producer layer's importance signal.
	PolicyInitOracle
	// PolicyLookaheadOracle is PolicyInitOracle with consumers feeding their
	// own attention mass back into the producer's signal.
	PolicyLookaheadOracle
	// PolicyStreamingLLM keeps the first four sink tokens plus a recency
	// window, independent of content.
	PolicyStreamingLLM
	// PolicyOracleGrouped ranks keys by attention computed on head-dimension
	// downsampled queries and keys.
	PolicyOracleGrouped
	// PolicyQuest ranks keys by page-level max-pooled key representations.
	PolicyQuest
	// PolicySnapKV maintains a fixed-capacity active set driven by pooled
	// observation-window attention mass.
	PolicySnapKV
	// PolicyH2O maintains a fixed-capacity active set driven by the raw
	// attention score of the newest query row.
	PolicyH2O
)

// policyNames maps each policy to its canonical configuration name.
var policyNames = map[Policy]string{
	PolicyDense:           "dense",
	PolicyOracle:          "oracle",
	PolicyRandom:          "random",
	PolicyInitOracle:      "init_oracle",
	PolicyLookaheadOracle: "lookahead_oracle",
	PolicyStreamingLLM:    "streamingLLM",
	PolicyOracleGrouped:   "oracle_grouped",
	PolicyQuest:           "quest",
	PolicySnapKV:          "snapkv",
	PolicyH2O:             "h2o_true",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy resolves a policy configuration name. Unknown names are a
// ConfigError.
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, configErrorf(-1, "unknown policy %q", name)
}

// UsesActiveSet reports whether the policy carries incremental eviction
// state in the cache between prefill and decode steps.
func (p Policy) UsesActiveSet() bool {
	return p == PolicySnapKV || p == PolicyH2O
}

// ReadsProducer reports whether the policy consumes a producer layer's
// importance signal from the step context.
func (p Policy) ReadsProducer() bool {
	return p == PolicyInitOracle || p == PolicyLookaheadOracle
}
