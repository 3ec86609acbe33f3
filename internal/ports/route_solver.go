package ports

import (
	"context"
	"errors"
)

// ErrNoSolution is returned by a RouteSolver that could not produce a feasible order.
var ErrNoSolution = errors.New("no feasible solution")

// Contract for a single-vehicle routing solver.
//
// costs is a square integer matrix where node 0 is the depot. Solve returns
// the visiting sequence starting at node 0 and visiting every other node
// exactly once. The return leg to the depot is not part of the objective.
// Implementations must stop when ctx is done.
type RouteSolver interface {
	Solve(ctx context.Context, costs [][]int64) ([]int, error)
}
