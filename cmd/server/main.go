package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"

	"route-tracker/internal/adapters/repositories"
	"route-tracker/internal/adapters/roadpath"
	"route-tracker/internal/adapters/sessionstore"
	"route-tracker/internal/adapters/solver"
	"route-tracker/internal/adapters/stopfile"
	"route-tracker/internal/api"
	"route-tracker/internal/auth"
	"route-tracker/internal/config"
	"route-tracker/internal/platform/db"
	"route-tracker/internal/platform/obs"
	"route-tracker/internal/ports"
	"route-tracker/internal/services"
	"route-tracker/internal/session"
)

const userAgent = "route-tracker/1.0"

// main is the application composition root.
// It picks concrete adapters (Postgres or static drivers, Redis or in-memory
// sessions, OSRM road paths) from configuration and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := credentialRepository(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeRepo()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = sessionstore.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal(err)
		}
		defer func() { _ = rdb.Close() }()
	}

	store := sessionStore(cfg, rdb)

	roadPath, err := roadPathProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}

	obs.RegisterDefault()

	authn := auth.NewAuthenticator(repo, cfg.JWTSecret, cfg.SessionTTL)
	builder := services.NewRouteBuilder(solver.NewCheapestArcSolver(cfg.SolverTwoOpt), cfg.SolverTimeLimit)
	ctl := session.NewController(store, authn, stopfile.NewCSVParser(), builder, roadPath, session.Settings{
		KeyMode:           cfg.StopKeyMode(),
		TrackingSeparator: cfg.TrackingSeparator,
		ProximityRadius:   cfg.ProximityRadius,
		RefreshInterval:   cfg.RefreshInterval,
		PositionMaxAge:    cfg.PositionMaxAge,
	})

	// WriteTimeout leaves room for a full solver run plus a road path lookup.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(ctl, authn),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.SolverTimeLimit + cfg.RoadPathTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server listening addr=:%s key_mode=%s road_path_disabled=%t", cfg.Port, cfg.KeyMode, cfg.RoadPathDisabled)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func credentialRepository(ctx context.Context, cfg *config.Config) (ports.CredentialRepository, func(), error) {
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("Driver credentials: postgres")
		return repositories.NewPostgresDriverRepository(conn), func() { closeDB(conn) }, nil
	}

	drivers, err := cfg.Drivers()
	if err != nil {
		return nil, nil, err
	}
	if len(drivers) == 0 {
		return nil, nil, errors.New("no driver credentials: set DATABASE_URL or STATIC_DRIVERS")
	}
	repo, err := repositories.NewMemoryDriverRepository(drivers)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Driver credentials: static list count=%d", len(drivers))
	return repo, func() {}, nil
}

// sessionStore uses Redis when configured so sessions survive restarts and
// are shared between replicas.
func sessionStore(cfg *config.Config, rdb *redis.Client) session.Store {
	if rdb != nil {
		log.Println("Session store: redis")
		return sessionstore.NewRedisSessionStore(rdb, cfg.SessionTTL)
	}

	log.Println("Session store: memory")
	return sessionstore.NewMemorySessionStore(cfg.SessionTTL)
}

// roadPathProvider makes a fresh lookup on every tick; results are not cached.
func roadPathProvider(cfg *config.Config) (ports.RoadPathProvider, error) {
	if cfg.RoadPathDisabled {
		return roadpath.StraightLine{}, nil
	}

	p, err := roadpath.NewOSRMRoadPath(cfg.OSRMBaseURL, cfg.OSRMProfile, cfg.RoadPathTimeout,
		roadpath.WithRateLimit(cfg.RoadPathRate),
		roadpath.WithUserAgent(userAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("road path provider: %w", err)
	}
	return p, nil
}

func closeDB(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		log.Printf("close database: %v", err)
	}
}
