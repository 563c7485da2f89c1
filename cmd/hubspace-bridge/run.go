package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/hubspace-bridge/internal/api"
	"github.com/nerrad567/hubspace-bridge/internal/bridge"
	"github.com/nerrad567/hubspace-bridge/internal/coordinator"
	"github.com/nerrad567/hubspace-bridge/internal/device"
	"github.com/nerrad567/hubspace-bridge/internal/hubspace"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/database"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/mdns"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hubspace-bridge/migrations"
)

// run is the service, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting hubspace-bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	history := device.NewSQLiteStateHistoryRepository(db.DB)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	cloud, err := newCloudClient(cfg, log)
	if err != nil {
		return err
	}
	poller := newCoordinator(cloud, cfg, log)

	opts := bridge.Options{
		Cloud:            cloud,
		MQTT:             mqttClient,
		Poller:           poller,
		Topics:           mqttClient.Topics(),
		Registry:         registry,
		History:          history,
		Logger:           log.With("component", "bridge"),
		CommandTimeout:   cfg.HubSpace.Timeout,
		SetupRetryDelay:  cfg.HubSpace.SetupRetryDelay,
		HistoryRetention: cfg.Database.HistoryRetention,
		DiagnosticsPath:  cfg.Diagnostics.OutputPath,
	}
	// Leave Telemetry nil rather than a typed-nil *influxdb.Client.
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	br, err := bridge.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// API comes up before the cloud so /health reports progress while
	// setup retries.
	if cfg.API.Enabled {
		stop, apiErr := startAPI(ctx, cfg, br, log)
		if apiErr != nil {
			return apiErr
		}
		defer stop()
	} else {
		log.Info("HTTP API disabled")
	}

	if err := br.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown during setup")
			return nil
		}
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: bridge, API, InfluxDB, MQTT, database.
	log.Info("hubspace-bridge stopped")
	return nil
}

// openDatabase opens SQLite and applies the embedded migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")
	return db, nil
}

// newCloudClient builds the HubSpace client from config.
func newCloudClient(cfg *config.Config, log *logging.Logger) (*hubspace.Client, error) {
	client, err := hubspace.New(hubspace.Config{
		Username: cfg.HubSpace.Username,
		Password: cfg.HubSpace.Password,
		APIURL:   cfg.HubSpace.APIURL,
		TokenURL: cfg.HubSpace.TokenURL,
		ClientID: cfg.HubSpace.ClientID,
		Timeout:  cfg.HubSpace.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating hubspace client: %w", err)
	}
	client.SetLogger(log.With("component", "hubspace"))
	return client, nil
}

// newCoordinator builds the polling coordinator for client.
func newCoordinator(client *hubspace.Client, cfg *config.Config, log *logging.Logger) *coordinator.Coordinator {
	c := coordinator.New(client, coordinator.Options{
		FriendlyNames: cfg.HubSpace.FriendlyNames,
		RoomNames:     cfg.HubSpace.RoomNames,
		Interval:      cfg.HubSpace.PollInterval,
		Timeout:       cfg.HubSpace.Timeout,
	})
	c.SetLogger(log.With("component", "coordinator"))
	return c
}

// startAPI starts the HTTP server and, when configured, its mDNS record.
// The returned function stops both.
func startAPI(ctx context.Context, cfg *config.Config, br *bridge.Bridge, log *logging.Logger) (func(), error) {
	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.With("component", "api"),
		Bridge:   br,
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		log.Warn("API authentication disabled: security.jwt.secret is empty")
	}

	var adv *mdns.Advertiser
	if cfg.API.Advertise {
		adv, err = mdns.NewAdvertiser(mdns.Config{
			Port:    srv.Port(),
			Version: version,
		})
		if err == nil {
			adv.SetLogger(log.With("component", "mdns"))
			err = adv.Start()
		}
		if err != nil {
			log.Warn("mDNS advertisement failed, continuing without it", "error", err)
			adv = nil
		}
	}

	return func() {
		if adv != nil {
			adv.Stop()
		}
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
