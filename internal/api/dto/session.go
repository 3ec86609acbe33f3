package dto

import (
	"route-tracker/internal/session"
)

type LoginRequest struct {
	UserID    string `json:"user_id" validate:"required,max=64"`
	AccessKey string `json:"access_key" validate:"required,max=128"`
}

type LoginResponse struct {
	Token            string `json:"token"`
	SessionID        string `json:"session_id"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// Pointers distinguish a missing field from a zero coordinate.
type PositionRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

type ViewRequest struct {
	Mode string `json:"mode" validate:"required,oneof=map list"`
}

type SnapshotResponse struct {
	session.Snapshot
	RefreshIntervalSeconds int `json:"refresh_interval_seconds"`
}

func NewSnapshotResponse(s session.Snapshot) SnapshotResponse {
	return SnapshotResponse{Snapshot: s, RefreshIntervalSeconds: int(s.RefreshInterval.Seconds())}
}

type NavigationResponse struct {
	URL string `json:"url"`
}
