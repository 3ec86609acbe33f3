package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"route-tracker/internal/platform/obs"
	"route-tracker/internal/ports"
)

// Postgres-backed implementation of the CredentialRepository port.
type PostgresDriverRepository struct{ DB *sql.DB }

func NewPostgresDriverRepository(db *sql.DB) *PostgresDriverRepository {
	return &PostgresDriverRepository{DB: db}
}

func (s *PostgresDriverRepository) FindDriver(ctx context.Context, userID string) (_ ports.DriverCredential, err error) {
	defer obs.Time(ctx, "drivers.FindDriver")(&err)

	if s.DB == nil {
		return ports.DriverCredential{}, errors.New("postgres driver repository: DB is nil")
	}

	query := `
	SELECT user_id, access_key_hash
	FROM drivers
	WHERE user_id = $1;
	`

	var cred ports.DriverCredential
	err = s.DB.QueryRowContext(ctx, query, userID).Scan(&cred.UserID, &cred.AccessKeyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.DriverCredential{}, ports.ErrDriverNotFound
	}
	if err != nil {
		return ports.DriverCredential{}, fmt.Errorf("find driver: query drivers table: %w", err)
	}

	return cred, nil
}
