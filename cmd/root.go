package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sparse-attn/sparse-attn/attn"
)

var (
	// CLI flags for the attention stack
	seed              int64  // Master seed for policy RNG streams and the synthetic workload
	logLevel          string // Log verbosity level
	configPath        string // Path to a YAML sparsity bundle
	policy            string // Sparsification policy name
	schedule          string // Token-sparsity schedule name
	minSparseIndex    int    // Always-kept prefix length
	producerFrequency int    // Layers per producer group
	numLayers         int    // Stack depth
	numHeads          int    // Query heads per layer
	numKVHeads        int    // Key/value heads per layer
	headDim           int    // Head dimension
	groupFactor       int    // Head-dim downsampling factor for oracle_grouped

	// CLI flags for the synthetic workload
	promptTokens int // Prefill prompt length
	decodeTokens int // Single-token decode steps after prefill
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "sparse-attn",
	Short: "KV-cache sparsification testbed for causal attention stacks",
}

// runCmd drives one synthetic sequence through a configured stack and prints
// the per-layer effective sparsity.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a prefill/decode pass and report effective sparsity per layer",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		bundle := &attn.SparsityBundle{Policy: policy, Schedule: schedule}
		if configPath != "" {
			bundle, err = attn.LoadSparsityBundle(configPath)
			if err != nil {
				logrus.Fatalf("Loading sparsity config: %v", err)
			}
		}
		if cmd.Flags().Changed("min-sparse-index") {
			bundle.MinSparseIndex = &minSparseIndex
		}
		if cmd.Flags().Changed("producer-frequency") {
			bundle.ProducerFrequency = &producerFrequency
		}

		reports, err := RunWorkload(bundle, WorkloadConfig{
			NumLayers:    numLayers,
			NumHeads:     numHeads,
			NumKVHeads:   numKVHeads,
			HeadDim:      headDim,
			GroupFactor:  groupFactor,
			PromptTokens: promptTokens,
			DecodeTokens: decodeTokens,
			Seed:         seed,
		})
		if err != nil {
			logrus.Fatalf("Workload failed: %v", err)
		}

		for _, r := range reports {
			logrus.Infof("layer %2d policy=%s aggression=%.2f effective_sparsity=%.2f%%",
				r.Layer, r.Policy, r.Aggression, r.Sparsity)
		}
		logrus.Info("Run complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for RNG streams")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML sparsity bundle; flags below are ignored when set")

	// Sparsification configs
	runCmd.Flags().StringVar(&policy, "policy", "dense", "Sparsification policy")
	runCmd.Flags().StringVar(&schedule, "schedule", "LazyLLM", "Token sparsity schedule")
	runCmd.Flags().IntVar(&minSparseIndex, "min-sparse-index", 0, "Always-kept prefix length")
	runCmd.Flags().IntVar(&producerFrequency, "producer-frequency", 0, "Layers per producer group (0 = one group)")

	// Stack shape configs
	runCmd.Flags().IntVar(&numLayers, "layers", 32, "Number of attention layers")
	runCmd.Flags().IntVar(&numHeads, "heads", 8, "Query heads per layer")
	runCmd.Flags().IntVar(&numKVHeads, "kv-heads", 8, "Key/value heads per layer")
	runCmd.Flags().IntVar(&headDim, "head-dim", 16, "Head dimension")
	runCmd.Flags().IntVar(&groupFactor, "group-factor", 0, "Head-dim downsampling factor (0 = default; must divide head-dim)")

	// Workload configs
	runCmd.Flags().IntVar(&promptTokens, "prompt-tokens", 128, "Prefill prompt length")
	runCmd.Flags().IntVar(&decodeTokens, "decode-tokens", 32, "Decode steps after prefill")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
