package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"route-tracker/internal/platform/obs"
	"route-tracker/internal/ports"
)

// CheapestArcSolver implements ports.RouteSolver for a single vehicle.
//
// A first solution is built by repeatedly extending the path from its last
// node along the cheapest arc to an unvisited node. When Improve is set the
// path is then refined with 2-opt moves until no move helps or ctx ends.
// The path is open: the return leg to the depot is never counted.
type CheapestArcSolver struct {
	Improve bool
	// Upper bound on 2-opt passes; 0 means run until no improving move exists.
	MaxPasses int
}

func NewCheapestArcSolver(improve bool) *CheapestArcSolver {
	return &CheapestArcSolver{Improve: improve}
}

func (s *CheapestArcSolver) Solve(ctx context.Context, costs [][]int64) (_ []int, err error) {
	defer obs.Time(ctx, "solver.Solve")(&err)

	n := len(costs)
	if n == 0 {
		return nil, errors.New("solve: cost matrix is empty")
	}
	for i, row := range costs {
		if len(row) != n {
			return nil, fmt.Errorf("solve: cost matrix row %d has %d columns, want %d", i, len(row), n)
		}
	}

	seq, err := cheapestArcPath(ctx, costs)
	if err != nil {
		return nil, err
	}

	if s.Improve && n > 3 {
		// Improvement is best effort: ctx expiring here keeps the best path so far.
		seq = improveTwoOpt(ctx, costs, seq, s.MaxPasses)
	}

	return seq, nil
}

// cheapestArcPath builds a path from node 0 by always taking the cheapest arc
// out of the current end. Ties resolve to the lowest node index so the result
// is deterministic.
func cheapestArcPath(ctx context.Context, costs [][]int64) ([]int, error) {
	n := len(costs)

	visited := make([]bool, n)
	visited[0] = true
	seq := make([]int, 1, n)
	seq[0] = 0

	current := 0
	for len(seq) < n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("solve: construction interrupted after %d of %d nodes: %w: %w", len(seq), n, ports.ErrNoSolution, err)
		}

		best := -1
		bestCost := int64(math.MaxInt64)
		for j := 1; j < n; j++ {
			if visited[j] {
				continue
			}
			if c := costs[current][j]; c < bestCost {
				best = j
				bestCost = c
			}
		}

		if best < 0 {
			return nil, fmt.Errorf("solve: no arc out of node %d: %w", current, ports.ErrNoSolution)
		}

		visited[best] = true
		seq = append(seq, best)
		current = best
	}

	return seq, nil
}
