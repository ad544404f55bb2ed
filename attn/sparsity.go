package attn

import "math"

// effectiveSparsity measures how much of the causally reachable context the
// selection mask additionally suppressed: per (batch, head, query) row, the
// count of positions a query could causally attend but the policy masked,
// over the count causally available at zero sparsity, averaged and expressed
// as a percentage. Purely diagnostic; never alters behavior.
func effectiveSparsity(sel, causal *Tensor) float64 {
	var sum float64
	var rows int
	for b := 0; b < sel.Batch; b++ {
		for h := 0; h < sel.Heads; h++ {
			for r := 0; r < sel.Rows; r++ {
				selRow := sel.Row(b, h, r)
				causalRow := causal.Row(b, 0, r)
				var suppressed, causallyOff, available int
				for c := 0; c < sel.Cols; c++ {
					off := math.IsInf(causalRow[c], -1)
					if off {
						causallyOff++
					} else {
						available++
					}
					if off || math.IsInf(selRow[c], -1) {
						suppressed++
					}
				}
				if available > 0 {
					sum += float64(suppressed-causallyOff) / float64(available)
					rows++
				}
			}
		}
	}
	if rows == 0 {
		return 0
	}
	return 100 * sum / float64(rows)
}
