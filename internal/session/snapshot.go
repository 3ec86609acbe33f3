package session

import (
	"time"

	"github.com/twpayne/go-polyline"

	"route-tracker/internal/domain"
)

type EventType string

const (
	EventStopCompleted  EventType = "stop_completed"
	EventRouteCompleted EventType = "route_completed"
)

// Event describes a state change produced by a handler, for the UI to announce.
type Event struct {
	Type   EventType `json:"type"`
	Index  int       `json:"index"`
	Source string    `json:"source,omitempty"`
}

type StopView struct {
	Index   int                   `json:"index"`
	Stop    domain.AggregatedStop `json:"stop"`
	Done    bool                  `json:"done"`
	Skipped bool                  `json:"skipped"`
	Active  bool                  `json:"active"`
}

// Snapshot is an immutable view of a session after one event.
type Snapshot struct {
	SessionID          string               `json:"session_id"`
	UserID             string               `json:"user_id"`
	ViewMode           ViewMode             `json:"view_mode"`
	Position           *domain.LivePosition `json:"position,omitempty"`
	WaitingForPosition bool                 `json:"waiting_for_position"`
	UploadedStops      int                  `json:"uploaded_stops"`
	HasRoute           bool                 `json:"has_route"`
	Stops              []StopView           `json:"stops"`
	ActiveIndex        *int                 `json:"active_index,omitempty"`
	DoneCount          int                  `json:"done_count"`
	RouteCompleted     bool                 `json:"route_completed"`
	TotalDistance      int64                `json:"total_distance_meters"`
	RoadPath           []domain.Coordinates `json:"road_path,omitempty"`
	EncodedPath        string               `json:"encoded_path,omitempty"`
	RefreshInterval    time.Duration        `json:"-"`
	Events             []Event              `json:"events,omitempty"`
}

// snapshotOf renders s. waiting reports that no usable position is known;
// a stale position is still shown as the last known one.
func snapshotOf(s *Session, refresh time.Duration, waiting bool) Snapshot {
	p := s.tracker()
	snap := Snapshot{
		SessionID:          s.ID,
		UserID:             s.UserID,
		ViewMode:           s.ViewMode,
		WaitingForPosition: waiting,
		UploadedStops:      len(s.Pending),
		RefreshInterval:    refresh,
		Stops:              []StopView{},
	}
	if s.Position != nil {
		pos := *s.Position
		snap.Position = &pos
	}

	route := p.Route()
	if route == nil {
		return snap
	}

	snap.HasRoute = true
	snap.TotalDistance = route.TotalDistanceMeters
	snap.RouteCompleted = p.Complete()

	active, hasActive := p.NextPending()
	if hasActive {
		snap.ActiveIndex = &active
	}

	skipped := make(map[int]bool)
	for _, i := range p.Skipped() {
		skipped[i] = true
	}

	snap.Stops = make([]StopView, 0, route.Len())
	for _, rs := range route.Stops {
		done := p.IsDone(rs.Index)
		if done {
			snap.DoneCount++
		}
		snap.Stops = append(snap.Stops, StopView{
			Index:   rs.Index,
			Stop:    rs.Stop,
			Done:    done,
			Skipped: skipped[rs.Index],
			Active:  hasActive && rs.Index == active,
		})
	}

	return snap
}

// withRoadPath attaches path and its Google encoded polyline form.
func (s Snapshot) withRoadPath(path []domain.Coordinates) Snapshot {
	if len(path) == 0 {
		return s
	}
	coords := make([][]float64, len(path))
	for i, c := range path {
		coords[i] = []float64{c.Lat, c.Lon}
	}
	s.RoadPath = path
	s.EncodedPath = string(polyline.EncodeCoords(coords))
	return s
}
