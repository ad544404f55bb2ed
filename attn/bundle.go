package attn

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SparsityBundle holds unified sparsification configuration, loadable from a
// YAML file. Nil pointer fields mean "not set in YAML" and do not override
// the layer construction config. It is applied exactly once, before the
// first forward call of a sequence.
type SparsityBundle struct {
	Policy            string `yaml:"policy"`
	Schedule          string `yaml:"schedule"`
	MinSparseIndex    *int   `yaml:"min_sparse_index"`
	PageSize          *int   `yaml:"page_size"`
	GroupFactor       *int   `yaml:"group_factor"`
	WindowSize        *int   `yaml:"window_size"`
	KernelSize        *int   `yaml:"kernel_size"`
	ProducerFrequency *int   `yaml:"producer_frequency"`
	Seed              *int64 `yaml:"seed"`
	InferenceMode     bool   `yaml:"inference_mode"`
}

// LoadSparsityBundle reads and parses a YAML sparsification config file.
func LoadSparsityBundle(path string) (*SparsityBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sparsity config: %w", err)
	}
	var bundle SparsityBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing sparsity config: %w", err)
	}
	return &bundle, nil
}

// Validate checks that all names and parameter ranges in the bundle are
// valid, before any layer is touched.
func (b *SparsityBundle) Validate() error {
	if _, err := ParsePolicy(b.Policy); err != nil {
		return err
	}
	if err := ValidSchedule(b.Schedule); err != nil {
		return err
	}
	if b.MinSparseIndex != nil && *b.MinSparseIndex < 0 {
		return configErrorf(-1, "min_sparse_index must be non-negative, got %d", *b.MinSparseIndex)
	}
	if b.PageSize != nil && *b.PageSize <= 0 {
		return configErrorf(-1, "page_size must be positive, got %d", *b.PageSize)
	}
	if b.GroupFactor != nil && *b.GroupFactor <= 0 {
		return configErrorf(-1, "group_factor must be positive, got %d", *b.GroupFactor)
	}
	if b.WindowSize != nil && *b.WindowSize <= 0 {
		return configErrorf(-1, "window_size must be positive, got %d", *b.WindowSize)
	}
	if b.KernelSize != nil && (*b.KernelSize <= 0 || *b.KernelSize%2 == 0) {
		return configErrorf(-1, "kernel_size must be positive odd, got %d", *b.KernelSize)
	}
	if b.ProducerFrequency != nil && *b.ProducerFrequency <= 0 {
		return configErrorf(-1, "producer_frequency must be positive, got %d", *b.ProducerFrequency)
	}
	return nil
}

// ApplyToConfig merges the bundle's construction-time parameters into a
// layer config. Policy, schedule and prefix are applied separately via
// Stack.Configure.
func (b *SparsityBundle) ApplyToConfig(cfg LayerConfig) LayerConfig {
	if b.MinSparseIndex != nil {
		cfg.MinSparseIndex = *b.MinSparseIndex
	}
	if b.PageSize != nil {
		cfg.PageSize = *b.PageSize
	}
	if b.GroupFactor != nil {
		cfg.GroupFactor = *b.GroupFactor
	}
	if b.WindowSize != nil {
		cfg.WindowSize = *b.WindowSize
	}
	if b.KernelSize != nil {
		cfg.KernelSize = *b.KernelSize
	}
	return cfg
}
