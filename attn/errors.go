package attn

import "fmt"

// ConfigError reports an invalid static configuration: an unknown policy or
// schedule name, or grouping parameters that do not divide the head dimension.
// It is raised during setup or at the top of Forward, before any tensor work.
type ConfigError struct {
	Layer int
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("attn config (layer %d): %s", e.Layer, e.Msg)
}

// ShapeError reports an attention-logits shape that changed unexpectedly
// after mask addition. This indicates a mask-construction bug and aborts the
// forward call immediately.
type ShapeError struct {
	Layer  int
	Policy Policy
	Got    [4]int
	Want   [4]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("attn shape (layer %d, policy %s): logits %v after mask addition, want %v",
		e.Layer, e.Policy, e.Got, e.Want)
}

// StateError reports inconsistent incremental state: an eviction active count
// over capacity, producer scratch read before it was written in the same
// step, a decode step issued without prefill eviction state, or an attempt to
// reconfigure a layer mid-sequence.
type StateError struct {
	Layer int
	Msg   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("attn state (layer %d): %s", e.Layer, e.Msg)
}

func configErrorf(layer int, format string, args ...any) error {
	return &ConfigError{Layer: layer, Msg: fmt.Sprintf(format, args...)}
}

func stateErrorf(layer int, format string, args ...any) error {
	return &StateError{Layer: layer, Msg: fmt.Sprintf(format, args...)}
}
