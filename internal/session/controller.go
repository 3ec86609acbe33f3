package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"route-tracker/internal/auth"
	"route-tracker/internal/domain"
	"route-tracker/internal/platform/obs"
	"route-tracker/internal/ports"
	"route-tracker/internal/services"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidViewMode = errors.New("invalid view mode")
	ErrNoActiveStop    = errors.New("no pending stop")
)

// saveAttempts bounds how often update reloads a session after a
// concurrent save from another replica.
const saveAttempts = 3

// Settings are the per-deployment knobs the handlers read.
type Settings struct {
	KeyMode           domain.KeyMode
	TrackingSeparator string
	ProximityRadius   float64
	RefreshInterval   time.Duration
	// PositionMaxAge is how long a reported position stays usable. Older
	// positions count as unavailable; zero keeps them forever.
	PositionMaxAge    time.Duration
}

// Controller applies driver events to sessions. Each handler loads the
// session, applies one event and saves it back; a failing handler saves
// nothing, so prior state stays intact.
type Controller struct {
	store    Store
	auth     *auth.Authenticator
	parser   ports.StopFileParser
	builder  *services.RouteBuilder
	roadPath ports.RoadPathProvider
	settings Settings

	now   func() time.Time
	newID func() string
	locks keyedMutex
}

func NewController(
	store Store,
	authenticator *auth.Authenticator,
	parser ports.StopFileParser,
	builder *services.RouteBuilder,
	roadPath ports.RoadPathProvider,
	settings Settings,
) *Controller {
	if settings.TrackingSeparator == "" {
		settings.TrackingSeparator = services.DefaultTrackingSeparator
	}
	if settings.KeyMode == "" {
		settings.KeyMode = domain.KeyCoordinateOnly
	}
	return &Controller{
		store:    store,
		auth:     authenticator,
		parser:   parser,
		builder:  builder,
		roadPath: roadPath,
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// OnLogin verifies the credentials, opens a fresh session and returns a
// signed token bound to it.
func (c *Controller) OnLogin(ctx context.Context, userID, accessKey string) (token string, snap Snapshot, err error) {
	defer obs.Time(ctx, "session.OnLogin")(&err)

	if err := c.auth.Verify(ctx, userID, accessKey); err != nil {
		return "", Snapshot{}, err
	}

	s := NewSession(c.newID(), userID, c.now())
	if err := c.store.Save(ctx, s); err != nil {
		return "", Snapshot{}, fmt.Errorf("login: %w", err)
	}

	token, err = c.auth.MakeToken(s.UserID, s.ID)
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("login: sign token: %w", err)
	}

	log.Printf("req_id=%s event=login user=%s session=%s", obs.RequestID(ctx), s.UserID, s.ID)
	return token, c.snapshot(s), nil
}

// OnLogout discards the session and everything it holds.
func (c *Controller) OnLogout(ctx context.Context, sessionID string) error {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	if err := c.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// OnPositionLost records that the client can no longer provide a position.
// Route computation and navigation wait until a new one arrives.
func (c *Controller) OnPositionLost(ctx context.Context, sessionID string) (Snapshot, error) {
	return c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		s.Position = nil
		return nil, nil
	})
}

func (c *Controller) OnPositionUpdate(ctx context.Context, sessionID string, pos domain.Coordinates) (Snapshot, error) {
	if !pos.Valid() {
		return Snapshot{}, fmt.Errorf("position %s: %w", pos, ErrInvalidPosition)
	}

	return c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		s.Position = &domain.LivePosition{Coordinates: pos, UpdatedAt: c.now()}
		return nil, nil
	})
}

// OnFileUploaded parses and aggregates a stop file. A rejected file leaves
// the previous upload in place.
func (c *Controller) OnFileUploaded(ctx context.Context, sessionID string, r io.Reader) (snap Snapshot, err error) {
	defer obs.Time(ctx, "session.OnFileUploaded")(&err)

	rows, err := c.parser.Parse(r)
	if err != nil {
		return Snapshot{}, err
	}

	stops, err := services.AggregateStops(rows, c.settings.KeyMode, c.settings.TrackingSeparator)
	if err != nil {
		return Snapshot{}, err
	}

	log.Printf("req_id=%s event=upload session=%s rows=%d stops=%d",
		obs.RequestID(ctx), sessionID, len(rows), len(stops))

	return c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		s.Pending = stops
		return nil, nil
	})
}

// OnComputeRoute orders the uploaded stops starting from the current position.
// On success progress starts over; on failure the previous route and its
// progress are kept.
func (c *Controller) OnComputeRoute(ctx context.Context, sessionID string) (Snapshot, error) {
	return c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		pos, ok := c.livePosition(s)
		if !ok {
			return nil, domain.ErrLocationUnavailable
		}
		if len(s.Pending) == 0 {
			return nil, domain.ErrNoUpload
		}

		route, err := c.builder.Build(ctx, pos, s.Pending)
		if err != nil {
			return nil, err
		}

		s.tracker().SetRoute(route)
		log.Printf("req_id=%s event=route session=%s stops=%d distance_m=%d",
			obs.RequestID(ctx), s.ID, route.Len(), route.TotalDistanceMeters)
		return nil, nil
	})
}

// OnTimerTick runs the periodic refresh: it completes the next stop when the
// driver is within the proximity radius and attaches the road path from the
// current position through every route stop in visiting order.
//
// Without a usable position the tick only reports that it is waiting.
func (c *Controller) OnTimerTick(ctx context.Context, sessionID string) (Snapshot, error) {
	var waypoints []domain.Coordinates

	snap, err := c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		waypoints = nil
		pos, ok := c.livePosition(s)
		if !ok {
			return nil, nil
		}
		p := s.tracker()
		if p.Route() == nil {
			return nil, nil
		}

		var events []Event
		if idx, completed := p.CheckProximity(pos, c.settings.ProximityRadius); completed {
			events = completionEvents(p, idx, "proximity")
		}

		waypoints = append([]domain.Coordinates{pos}, p.Route().Coordinates()...)
		return events, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	countCompletions(snap.Events)

	// The lookup may take seconds, so it runs after the session lock is released.
	if len(waypoints) >= 2 && c.roadPath != nil {
		snap = snap.withRoadPath(c.roadPath.ToRoadPath(ctx, waypoints))
	}

	return snap, nil
}

func (c *Controller) OnManualComplete(ctx context.Context, sessionID string, index int) (Snapshot, error) {
	return c.complete(ctx, sessionID, index, "manual")
}

func (c *Controller) OnSkip(ctx context.Context, sessionID string, index int) (Snapshot, error) {
	return c.complete(ctx, sessionID, index, "skip")
}

func (c *Controller) complete(ctx context.Context, sessionID string, index int, source string) (Snapshot, error) {
	snap, err := c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		p := s.tracker()

		mark := p.MarkDone
		if source == "skip" {
			mark = p.Skip
		}
		changed, err := mark(index)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, nil
		}
		return completionEvents(p, index, source), nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	countCompletions(snap.Events)
	return snap, nil
}

func countCompletions(events []Event) {
	for _, e := range events {
		if e.Type == EventStopCompleted {
			obs.StopCompletions.WithLabelValues(e.Source).Inc()
		}
	}
}

// completionEvents reports a stop that just moved to done, plus the route
// completion when it was the last pending one.
func completionEvents(p *services.ProgressTracker, index int, source string) []Event {
	events := []Event{{Type: EventStopCompleted, Index: index, Source: source}}
	if p.Complete() {
		events = append(events, Event{Type: EventRouteCompleted, Index: index})
	}
	return events
}

func (c *Controller) OnReset(ctx context.Context, sessionID string) (Snapshot, error) {
	return c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		s.Reset()
		return nil, nil
	})
}

func (c *Controller) OnSetViewMode(ctx context.Context, sessionID string, mode ViewMode) (Snapshot, error) {
	if mode != ViewMap && mode != ViewList {
		return Snapshot{}, fmt.Errorf("%q: %w", mode, ErrInvalidViewMode)
	}

	return c.update(ctx, sessionID, func(s *Session) ([]Event, error) {
		s.ViewMode = mode
		return nil, nil
	})
}

// Snapshot returns the current state without changing it.
func (c *Controller) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	s, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return c.snapshot(s), nil
}

// NavigationLink returns a directions link from the current position to the
// next pending stop.
func (c *Controller) NavigationLink(ctx context.Context, sessionID string) (string, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	s, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	pos, ok := c.livePosition(s)
	if !ok {
		return "", domain.ErrLocationUnavailable
	}

	p := s.tracker()
	next, ok := p.NextPending()
	if !ok {
		return "", ErrNoActiveStop
	}

	return services.NavigationLink(pos, p.Route().Stops[next].Stop.Coordinates), nil
}

// update runs fn against a freshly loaded copy of the session under the
// session lock and saves the result only when fn succeeds. The lock only
// covers this process; when another replica saved first the session is
// reloaded and fn runs again, so fn must not have side effects outside s.
func (c *Controller) update(ctx context.Context, sessionID string, fn func(s *Session) ([]Event, error)) (Snapshot, error) {
	unlock := c.locks.Lock(sessionID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		s, err := c.store.Get(ctx, sessionID)
		if err != nil {
			return Snapshot{}, err
		}

		events, err := fn(s)
		if err != nil {
			return Snapshot{}, err
		}

		s.UpdatedAt = c.now()
		err = c.store.Save(ctx, s)
		if errors.Is(err, ErrSessionConflict) && attempt < saveAttempts {
			log.Printf("req_id=%s event=save_conflict session=%s attempt=%d", obs.RequestID(ctx), sessionID, attempt)
			continue
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("save session %s: %w", s.ID, err)
		}

		snap := c.snapshot(s)
		snap.Events = events
		return snap, nil
	}
}

// livePosition returns the session position unless it is missing or older
// than PositionMaxAge.
func (c *Controller) livePosition(s *Session) (domain.Coordinates, bool) {
	if s.Position == nil {
		return domain.Coordinates{}, false
	}
	if maxAge := c.settings.PositionMaxAge; maxAge > 0 && c.now().Sub(s.Position.UpdatedAt) > maxAge {
		return domain.Coordinates{}, false
	}
	return s.Position.Coordinates, true
}

func (c *Controller) snapshot(s *Session) Snapshot {
	_, live := c.livePosition(s)
	return snapshotOf(s, c.settings.RefreshInterval, !live)
}
