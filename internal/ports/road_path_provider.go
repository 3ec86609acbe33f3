package ports

import (
	"context"
	"route-tracker/internal/domain"
)

// Contract for turning ordered waypoints into a road-following polyline.
// Implementations never fail: on any problem they return points unchanged.
type RoadPathProvider interface {
	ToRoadPath(ctx context.Context, points []domain.Coordinates) []domain.Coordinates
}
