package domain

// Represents a single stop in a computed route.
// Index is the dense 0-based position in visiting order; SourceIndex is the
// position of the stop in the aggregated list the route was built from.
type RouteStop struct {
	Index       int            `json:"index"`
	SourceIndex int            `json:"source_index"`
	Stop        AggregatedStop `json:"stop"`
}

// Represents the visiting order for one driver starting at the depot.
// The depot itself is never part of Stops. A Route is replaced wholesale by
// a new optimization and is never modified in place.
type Route struct {
	Stops []RouteStop `json:"stops"`
	// Straight-line length of the open path depot -> last stop, in whole meters.
	TotalDistanceMeters int64 `json:"total_distance_meters"`
}

// Len returns the number of stops in the route; a nil route has none.
func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Stops)
}

// Coordinates returns the stop positions in visiting order.
func (r *Route) Coordinates() []Coordinates {
	if r == nil {
		return nil
	}
	out := make([]Coordinates, 0, len(r.Stops))
	for _, s := range r.Stops {
		out = append(out, s.Stop.Coordinates)
	}
	return out
}
