package solver

import "context"

// improveTwoOpt applies 2-opt segment reversals to an open path whose first
// node is fixed. Only strictly improving moves are taken, so the result is
// never worse than the input.
func improveTwoOpt(ctx context.Context, costs [][]int64, seq []int, maxPasses int) []int {
	best := append([]int(nil), seq...)
	bestCost := pathCost(costs, best)
	n := len(best)

	for pass := 0; maxPasses <= 0 || pass < maxPasses; pass++ {
		improved := false
		for i := 1; i < n-1; i++ {
			if ctx.Err() != nil {
				return best
			}
			for k := i + 1; k < n; k++ {
				candidate := twoOptSwap(best, i, k)
				if c := pathCost(costs, candidate); c < bestCost {
					best = candidate
					bestCost = c
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}

	return best
}

// twoOptSwap returns a copy of ord with the segment i..k reversed.
func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// pathCost sums arc costs along seq without a closing leg.
func pathCost(costs [][]int64, seq []int) int64 {
	var total int64
	for i := 0; i < len(seq)-1; i++ {
		total += costs[seq[i]][seq[i+1]]
	}
	return total
}
