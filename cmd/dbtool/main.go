package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"route-tracker/internal/adapters/repositories"
	"route-tracker/internal/config"
	"route-tracker/internal/platform/db"
)

// dbtool creates the drivers table and loads driver access keys from a JSON seed file.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/drivers.json")
	if err := initAndSeed(ctx, conn, seedPath); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Println("Schema ready.")

	log.Printf("Seeding drivers from %s...", seedPath)
	if err := repositories.SeedFromJSON(ctx, conn, seedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Println("Seeding complete.")

	return nil
}
