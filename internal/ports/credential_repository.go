package ports

import (
	"context"
	"errors"
)

// ErrDriverNotFound is returned when no driver matches the requested user id.
var ErrDriverNotFound = errors.New("driver not found")

// Driver credentials as stored by the credential source.
type DriverCredential struct {
	UserID        string
	AccessKeyHash []byte
}

// Port: a boundary for looking up driver credentials.
type CredentialRepository interface {
	FindDriver(ctx context.Context, userID string) (DriverCredential, error)
}
