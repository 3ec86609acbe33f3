package roadpath

import (
	"context"

	"route-tracker/internal/domain"
)

// StraightLine is the provider used when road lookups are disabled: the path
// is the waypoints themselves.
type StraightLine struct{}

func (StraightLine) ToRoadPath(_ context.Context, points []domain.Coordinates) []domain.Coordinates {
	return append([]domain.Coordinates(nil), points...)
}
