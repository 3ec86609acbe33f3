package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"route-tracker/internal/domain"
	"route-tracker/internal/geo"
	"route-tracker/internal/platform/obs"
	"route-tracker/internal/ports"
)

// RouteBuilder frames a depot plus stops as a single-vehicle routing problem
// and decodes the solver's answer into a Route. It holds no mutable state.
type RouteBuilder struct {
	Solver    ports.RouteSolver
	TimeLimit time.Duration
}

func NewRouteBuilder(solver ports.RouteSolver, timeLimit time.Duration) *RouteBuilder {
	return &RouteBuilder{Solver: solver, TimeLimit: timeLimit}
}

// Build computes the visiting order for stops starting from depot.
//
// Costs are haversine meters truncated to whole meters because the solver
// works on integers; the sub-meter loss does not affect ordering in practice.
// Any solver problem is reported as *domain.OptimizationFailure and no partial
// route is returned.
func (b *RouteBuilder) Build(
	ctx context.Context,
	depot domain.Coordinates,
	stops []domain.AggregatedStop,
) (_ *domain.Route, err error) {
	defer obs.Time(ctx, "route.Build")(&err)

	if len(stops) == 0 {
		return &domain.Route{Stops: []domain.RouteStop{}}, nil
	}

	if b.Solver == nil {
		return nil, &domain.OptimizationFailure{Stops: len(stops), Err: errors.New("no solver configured")}
	}

	costs := CostMatrix(depot, stops)

	solveCtx := ctx
	if b.TimeLimit > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, b.TimeLimit)
		defer cancel()
	}

	start := time.Now()
	seq, err := b.Solver.Solve(solveCtx, costs)
	obs.OptimizationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		obs.OptimizationFailures.Inc()
		return nil, &domain.OptimizationFailure{Stops: len(stops), Err: err}
	}

	order, err := decodeSequence(seq, len(stops))
	if err != nil {
		obs.OptimizationFailures.Inc()
		return nil, &domain.OptimizationFailure{Stops: len(stops), Err: err}
	}

	route := &domain.Route{Stops: make([]domain.RouteStop, 0, len(order))}
	prev := 0
	for i, src := range order {
		route.Stops = append(route.Stops, domain.RouteStop{
			Index:       i,
			SourceIndex: src,
			Stop:        stops[src],
		})
		route.TotalDistanceMeters += costs[prev][src+1]
		prev = src + 1
	}

	return route, nil
}

// CostMatrix builds the (N+1)x(N+1) matrix with the depot at node 0 and
// stops[i] at node i+1.
func CostMatrix(depot domain.Coordinates, stops []domain.AggregatedStop) [][]int64 {
	nodes := make([]domain.Coordinates, 0, len(stops)+1)
	nodes = append(nodes, depot)
	for _, s := range stops {
		nodes = append(nodes, s.Coordinates)
	}

	costs := make([][]int64, len(nodes))
	for i := range nodes {
		costs[i] = make([]int64, len(nodes))
		for j := range nodes {
			if i == j {
				continue
			}
			costs[i][j] = int64(geo.Distance(nodes[i], nodes[j]))
		}
	}

	return costs
}

// decodeSequence strips the depot from a solver sequence and shifts node ids
// back to stop indices. The sequence must start at the depot and contain each
// stop node exactly once.
func decodeSequence(seq []int, n int) ([]int, error) {
	if len(seq) == 0 || seq[0] != 0 {
		return nil, errors.New("decode solver sequence: sequence must start at depot")
	}

	seen := make([]bool, n)
	order := make([]int, 0, n)
	rest := seq[1:]
	for i, node := range rest {
		if node == 0 {
			// A closing depot visit is allowed only as the final element.
			if i == len(rest)-1 {
				break
			}
			return nil, errors.New("decode solver sequence: depot visited mid-route")
		}
		if node < 1 || node > n {
			return nil, fmt.Errorf("decode solver sequence: node %d out of range 1..%d", node, n)
		}
		if seen[node-1] {
			return nil, fmt.Errorf("decode solver sequence: node %d visited twice", node)
		}
		seen[node-1] = true
		order = append(order, node-1)
	}

	if len(order) != n {
		return nil, fmt.Errorf("decode solver sequence: visited %d of %d stops", len(order), n)
	}

	return order, nil
}
