package attn

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScheduleAggression returns the drop fraction (aggression) a layer applies
// under the named token-sparsity schedule. Aggression 0 keeps every causally
// available token; aggression 0.9 drops 90% of them.
//
// Recognized schedules:
//   - "LazyLLM": fixed depth bands: layers 0..9 drop nothing, 10..19 drop
//     30%, 20..28 drop 60%, deeper layers drop 90%.
//   - "fixed_<X>pc": layer 0 drops nothing, every other layer drops X%.
//   - "progressive_<X>pc": retained fraction decays geometrically,
//     (1-X/100)^layerIdx.
//
// The schedule runs once per layer at setup, not per forward call.
func ScheduleAggression(schedule string, layerIdx int) (float64, error) {
	switch {
	case schedule == "LazyLLM":
		switch {
		case layerIdx <= 9:
			return 0.0, nil
		case layerIdx <= 19:
			return 0.3, nil
		case layerIdx <= 28:
			return 0.6, nil
		default:
			return 0.9, nil
		}
	case strings.HasPrefix(schedule, "fixed_"):
		pc, err := parseSchedulePercent(schedule, "fixed_")
		if err != nil {
			return 0, err
		}
		if layerIdx == 0 {
			return 0.0, nil
		}
		return pc / 100.0, nil
	case strings.HasPrefix(schedule, "progressive_"):
		pc, err := parseSchedulePercent(schedule, "progressive_")
		if err != nil {
			return 0, err
		}
		return 1.0 - math.Pow(1.0-pc/100.0, float64(layerIdx)), nil
	default:
		return 0, configErrorf(layerIdx, "unknown token sparsity schedule %q", schedule)
	}
}

// parseSchedulePercent extracts X from "<prefix><X>pc".
func parseSchedulePercent(schedule, prefix string) (float64, error) {
	body := strings.TrimPrefix(schedule, prefix)
	body, ok := strings.CutSuffix(body, "pc")
	if !ok {
		return 0, configErrorf(-1, "malformed schedule %q: want %s<X>pc", schedule, prefix)
	}
	pc, err := strconv.ParseFloat(body, 64)
	if err != nil || pc < 0 || pc > 100 {
		return 0, configErrorf(-1, "malformed schedule %q: bad percentage %q", schedule, body)
	}
	return pc, nil
}

// ValidSchedule reports whether name parses as a schedule, without binding it
// to a layer. Shared by bundle validation.
func ValidSchedule(name string) error {
	_, err := ScheduleAggression(name, 1)
	if err != nil {
		return fmt.Errorf("validating schedule: %w", err)
	}
	return nil
}
