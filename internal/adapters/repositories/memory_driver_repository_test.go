package repositories

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"route-tracker/internal/ports"
)

func TestMemoryDriverRepositoryFindDriver(t *testing.T) {
	repo, err := newMemoryDriverRepository(map[string]string{"ADMIN": "master00"}, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cred, err := repo.FindDriver(context.Background(), "ADMIN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.UserID != "ADMIN" {
		t.Fatalf("user = %q, want ADMIN", cred.UserID)
	}
	if err := bcrypt.CompareHashAndPassword(cred.AccessKeyHash, []byte("master00")); err != nil {
		t.Fatalf("stored hash does not match key: %v", err)
	}

	if _, err := repo.FindDriver(context.Background(), "nobody"); !errors.Is(err, ports.ErrDriverNotFound) {
		t.Fatalf("err = %v, want ErrDriverNotFound", err)
	}
}
