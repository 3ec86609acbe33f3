package sessionstore

import (
	"fmt"

	"route-tracker/internal/session"
)

// checkVersion decides whether a session loaded at version incoming may
// overwrite what is stored.
func checkVersion(id string, stored int64, found bool, incoming int64) error {
	switch {
	case !found && incoming == 0:
		return nil
	case !found:
		return fmt.Errorf("save %s: %w", id, session.ErrSessionNotFound)
	case stored != incoming:
		return fmt.Errorf("save %s: loaded version %d, stored %d: %w", id, incoming, stored, session.ErrSessionConflict)
	}
	return nil
}
