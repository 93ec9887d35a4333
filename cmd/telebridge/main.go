// telebridge bridges MQTT telemetry into a relational store and
// dispatches actuator commands back out.
//
// Sensors publish readings to MQTT topics; telebridge subscribes to the
// topics of every active sensor, fans each reading out to the projects
// the sensor belongs to, and persists one measurement per association.
// Commands flow the other way: validated against the actuator's range,
// published with retries, and recorded only after the broker accepted
// them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nvidal9/telebridge/migrations"

	"github.com/nvidal9/telebridge/internal/api"
	"github.com/nvidal9/telebridge/internal/bridge"
	"github.com/nvidal9/telebridge/internal/catalog"
	"github.com/nvidal9/telebridge/internal/infrastructure/config"
	"github.com/nvidal9/telebridge/internal/infrastructure/database"
	"github.com/nvidal9/telebridge/internal/infrastructure/influxdb"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
	"github.com/nvidal9/telebridge/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting telebridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	catalogRepo := catalog.NewSQLiteRepository(db.DB)
	telemetryRepo := telemetry.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional telemetry mirror)
	var mirror bridge.Mirror
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirror = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble the bridge. The broker connection is opened below; a
	// failed initial connect is not fatal because commands trigger a
	// lazy retry and the API exposes an explicit initialize endpoint.
	br := bridge.New(bridge.Options{
		MQTT:      cfg.MQTT,
		Bridge:    cfg.Bridge,
		Catalog:   catalogRepo,
		Telemetry: telemetryRepo,
		Mirror:    mirror,
		Logger:    log.With("component", "bridge"),
	})
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := br.Close(); closeErr != nil {
			log.Error("error closing bridge", "error", closeErr)
		}
	}()

	if initErr := br.Initialize(ctx); initErr != nil {
		log.Warn("initial broker connection failed, will retry on demand", "error", initErr)
	}

	// Start the HTTP API
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log.With("component", "api"),
		Bridge:  br,
		DB:      db,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT bridge
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("telebridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TELEBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TELEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
