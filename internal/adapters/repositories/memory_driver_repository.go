package repositories

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"route-tracker/internal/ports"
)

// In-memory CredentialRepository built from a static user -> key list.
// Keys are hashed at construction so lookups behave like the Postgres store.
type MemoryDriverRepository struct {
	drivers map[string][]byte
}

func NewMemoryDriverRepository(keys map[string]string) (*MemoryDriverRepository, error) {
	return newMemoryDriverRepository(keys, bcrypt.DefaultCost)
}

func newMemoryDriverRepository(keys map[string]string, cost int) (*MemoryDriverRepository, error) {
	drivers := make(map[string][]byte, len(keys))
	for user, key := range keys {
		hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
		if err != nil {
			return nil, fmt.Errorf("memory driver repository: hash key for %q: %w", user, err)
		}
		drivers[user] = hash
	}
	return &MemoryDriverRepository{drivers: drivers}, nil
}

func (m *MemoryDriverRepository) FindDriver(_ context.Context, userID string) (ports.DriverCredential, error) {
	hash, ok := m.drivers[userID]
	if !ok {
		return ports.DriverCredential{}, ports.ErrDriverNotFound
	}
	return ports.DriverCredential{UserID: userID, AccessKeyHash: hash}, nil
}
