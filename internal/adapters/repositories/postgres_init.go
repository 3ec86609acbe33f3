package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Initialize the Postgres schema for driver credentials.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createDriversQuery := `
	CREATE TABLE IF NOT EXISTS drivers (
		user_id TEXT PRIMARY KEY,
		access_key_hash BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	statements := []string{
		createDriversQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type DriverSeed struct {
	UserID    string `json:"user_id"`
	AccessKey string `json:"access_key"`
}

// Populate the drivers table from a JSON file of plain access keys.
// Keys are stored only as bcrypt hashes.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed drivers: read %q: %w", jsonPath, err)
	}

	var data []DriverSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed drivers: parse json: %w", err)
	}

	type row struct {
		userID string
		hash   []byte
	}

	rows := make([]row, 0, len(data))
	for i, item := range data {
		userID := strings.TrimSpace(item.UserID)
		if userID == "" {
			return fmt.Errorf("seed drivers: item at index %d: user_id cannot be empty", i+1)
		}
		if item.AccessKey == "" {
			return fmt.Errorf("seed drivers: item %q: access_key cannot be empty", userID)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(item.AccessKey), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed drivers: hash key for %q: %w", userID, err)
		}
		rows = append(rows, row{userID: userID, hash: hash})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed drivers: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO drivers (user_id, access_key_hash)
	VALUES ($1, $2)
	ON CONFLICT (user_id) DO UPDATE
	SET access_key_hash = EXCLUDED.access_key_hash;
	`)
	if err != nil {
		return fmt.Errorf("seed drivers: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.userID, r.hash); err != nil {
			return fmt.Errorf("seed drivers: insert user_id=%q: %w", r.userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed drivers: commit tx: %w", err)
	}

	return nil
}
