// Package session holds the per-driver interactive state and the event
// handlers that move it forward.
package session

import (
	"context"
	"errors"
	"time"

	"route-tracker/internal/domain"
	"route-tracker/internal/services"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionConflict means the session was saved by someone else since
	// it was loaded.
	ErrSessionConflict = errors.New("session changed concurrently")
)

type ViewMode string

const (
	ViewMap  ViewMode = "map"
	ViewList ViewMode = "list"
)

// Session is the complete state of one logged-in driver. It is created at
// login and discarded at logout or when it expires from the store.
type Session struct {
	ID       string   `json:"id"`
	Version  int64    `json:"version"`
	UserID   string   `json:"user_id"`
	LoggedIn bool     `json:"logged_in"`
	ViewMode ViewMode `json:"view_mode"`

	Position *domain.LivePosition `json:"position,omitempty"`
	// Stops from the last accepted upload, waiting for a route computation.
	Pending  []domain.AggregatedStop   `json:"pending,omitempty"`
	Progress *services.ProgressTracker `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		LoggedIn:  true,
		ViewMode:  ViewMap,
		Progress:  services.NewProgressTracker(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset discards the route and its progress. The uploaded stops and the
// live position are kept so a new route can be computed right away.
func (s *Session) Reset() {
	s.tracker().Reset()
}

func (s *Session) tracker() *services.ProgressTracker {
	if s.Progress == nil {
		s.Progress = services.NewProgressTracker()
	}
	return s.Progress
}

// Store persists sessions for their lifetime. Get returns ErrSessionNotFound
// for unknown or expired ids. Implementations return independent copies so
// callers can mutate a loaded session without affecting the stored one.
//
// Save is a compare-and-set on Version: it fails with ErrSessionConflict when
// the stored session has a different version, and with ErrSessionNotFound
// when a previously saved session is gone. On success it increments
// s.Version. A session with Version 0 is new and must not exist yet.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
