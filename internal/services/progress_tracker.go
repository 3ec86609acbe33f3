package services

import (
	"encoding/json"
	"fmt"
	"slices"

	"route-tracker/internal/domain"
	"route-tracker/internal/geo"
)

// ProgressTracker records which stops of the current route are done.
//
// Stops only move from pending to done; there is no undo. Replacing the route
// always clears progress so indices from an earlier route never apply to a
// new one. The zero value is ready to use and has no route.
type ProgressTracker struct {
	route   *domain.Route
	done    map[int]struct{}
	skipped map[int]struct{}
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

// Route returns the current route, or nil when none is set.
func (p *ProgressTracker) Route() *domain.Route { return p.route }

// SetRoute replaces the current route and clears all progress.
func (p *ProgressTracker) SetRoute(r *domain.Route) {
	p.route = r
	p.done = make(map[int]struct{})
	p.skipped = make(map[int]struct{})
}

// Reset discards the route and all progress.
func (p *ProgressTracker) Reset() {
	p.route = nil
	p.done = nil
	p.skipped = nil
}

// MarkDone completes stop i. Completing an already done stop is a no-op;
// changed reports whether the call moved the stop to done.
func (p *ProgressTracker) MarkDone(i int) (changed bool, err error) {
	if err := p.checkIndex(i); err != nil {
		return false, err
	}
	if _, ok := p.done[i]; ok {
		return false, nil
	}
	if p.done == nil {
		p.done = make(map[int]struct{})
	}
	p.done[i] = struct{}{}
	return true, nil
}

// Skip completes stop i without delivering it. The stop counts as done for
// NextPending and is also reported by Skipped.
func (p *ProgressTracker) Skip(i int) (changed bool, err error) {
	changed, err = p.MarkDone(i)
	if err != nil || !changed {
		return changed, err
	}
	if p.skipped == nil {
		p.skipped = make(map[int]struct{})
	}
	p.skipped[i] = struct{}{}
	return true, nil
}

// CheckProximity completes the next pending stop when position is strictly
// closer than radiusMeters to it. Later stops are never checked, so passing
// near them on the way does not complete them early.
func (p *ProgressTracker) CheckProximity(position domain.Coordinates, radiusMeters float64) (index int, completed bool) {
	next, ok := p.NextPending()
	if !ok {
		return -1, false
	}

	stop := p.route.Stops[next].Stop
	if geo.Distance(position, stop.Coordinates) >= radiusMeters {
		return next, false
	}

	p.done[next] = struct{}{}
	return next, true
}

// NextPending returns the lowest index not yet done. ok is false when there
// is no route or every stop is done.
func (p *ProgressTracker) NextPending() (index int, ok bool) {
	for i := 0; i < p.route.Len(); i++ {
		if _, d := p.done[i]; !d {
			return i, true
		}
	}
	return -1, false
}

// Complete reports whether a route is set and every stop in it is done.
func (p *ProgressTracker) Complete() bool {
	if p.route == nil {
		return false
	}
	_, pending := p.NextPending()
	return !pending
}

// IsDone reports whether stop i is done.
func (p *ProgressTracker) IsDone(i int) bool {
	_, ok := p.done[i]
	return ok
}

// Done returns the done indices in ascending order.
func (p *ProgressTracker) Done() []int { return sortedKeys(p.done) }

// Skipped returns the skipped indices in ascending order.
func (p *ProgressTracker) Skipped() []int { return sortedKeys(p.skipped) }

func (p *ProgressTracker) checkIndex(i int) error {
	if p.route == nil {
		return fmt.Errorf("mark stop %d: no active route: %w", i, domain.ErrInvalidIndex)
	}
	if i < 0 || i >= p.route.Len() {
		return fmt.Errorf("mark stop %d: route has %d stops: %w", i, p.route.Len(), domain.ErrInvalidIndex)
	}
	return nil
}

type trackerJSON struct {
	Route   *domain.Route `json:"route"`
	Done    []int         `json:"done"`
	Skipped []int         `json:"skipped"`
}

func (p *ProgressTracker) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackerJSON{Route: p.route, Done: p.Done(), Skipped: p.Skipped()})
}

// UnmarshalJSON restores a tracker, rejecting indices outside the stored route.
func (p *ProgressTracker) UnmarshalJSON(b []byte) error {
	var v trackerJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decode progress: %w", err)
	}

	var t ProgressTracker
	if v.Route != nil {
		t.SetRoute(v.Route)
	}
	for _, i := range v.Done {
		if _, err := t.MarkDone(i); err != nil {
			return fmt.Errorf("decode progress: %w", err)
		}
	}
	for _, i := range v.Skipped {
		if !t.IsDone(i) {
			return fmt.Errorf("decode progress: skipped stop %d is not done: %w", i, domain.ErrInvalidIndex)
		}
		t.skipped[i] = struct{}{}
	}

	*p = t
	return nil
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
