// Gray Logic MFA - OATH device management service
//
// This is the main entry point for the MFA service. It serves each
// user's registered OATH authenticator devices over HTTP: listing them,
// removing one, and the skip/check actions that control whether a user
// may bypass OATH at login.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-mfa/internal/api"
	"github.com/nerrad567/gray-logic-mfa/internal/audit"
	"github.com/nerrad567/gray-logic-mfa/internal/auth"
	"github.com/nerrad567/gray-logic-mfa/internal/devices"
	"github.com/nerrad567/gray-logic-mfa/internal/identity"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/mqtt"
	redisconn "github.com/nerrad567/gray-logic-mfa/internal/infrastructure/redis"
	_ "github.com/nerrad567/gray-logic-mfa/migrations"
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

// startupCheckTimeout bounds the health checks run once everything is wired.
const startupCheckTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic MFA",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"store", cfg.Devices.Store,
	)

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
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	users := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.SeedOwner(ctx, users, seedRealm(cfg), log); seedErr != nil {
		return fmt.Errorf("seeding owner: %w", seedErr)
	}

	checks := map[string]api.HealthChecker{}

	// Redis backs the redis profile store and the login rate limiter.
	var rdb *goredis.Client
	if cfg.Devices.Store == config.StoreRedis || cfg.Redis.Enabled {
		rdb, err = redisconn.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		checks["redis"] = healthFunc(func(ctx context.Context) error {
			return redisconn.HealthCheck(ctx, rdb)
		})
		log.Info("Redis connected", "addr", cfg.Redis.Addr)
	}

	store, err := openStore(cfg, db, rdb)
	if err != nil {
		return err
	}

	deps := devices.Deps{
		Store:    store,
		Resolver: identity.NewResolver(users, identity.NewAttributeRepository(db.DB)),
		Services: devices.NewConfigServiceFactory(cfg.Devices.OATH),
		Logger:   log,
	}

	var mqttStatus api.ConnectionStatus
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT, log)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		deps.Events = mqtt.NewEventPublisher(mqttClient, byte(cfg.MQTT.QoS)) //nolint:gosec // qos validated 0-2
		mqttStatus = mqttClient
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled, device events will not be published")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB, log)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		deps.Metrics = influxdb.NewMetricsRecorder(influxClient)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// The recorder outlives the API server so in-flight entries are drained.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, log.Component("audit"), "api", audit.DefaultBufferSize)
	auditCtx, stopAudit := context.WithCancel(context.Background())
	go recorder.Run(auditCtx)
	defer func() {
		stopAudit()
		<-recorder.Done()
		log.Info("audit log drained")
	}()
	deps.Audit = recorder

	resource, err := devices.NewResource(deps)
	if err != nil {
		return fmt.Errorf("creating device resource: %w", err)
	}

	var limiter *api.RateLimiter
	if rdb != nil && cfg.API.LoginRateLimit > 0 {
		limiter = api.NewRateLimiter(rdb, cfg.Redis.KeyPrefix, cfg.API.LoginRateLimit, api.LoginRateWindow)
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Site:      cfg.Site,
		Logger:    log,
		Devices:   resource,
		Users:     users,
		AuditRepo: auditRepo,
		Audit:     recorder,
		DB:        db,
		MQTT:      mqttStatus,
		Checks:    checks,
		Limiter:   limiter,
		Version:   version,
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

	if err := healthCheck(ctx, db, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse order: API server, audit drain,
	// InfluxDB, MQTT, Redis, database.
	return nil
}

// getConfigPath returns GRAYLOGIC_CONFIG, or the default path when unset.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seedRealm is the realm of the first-boot owner account.
func seedRealm(cfg *config.Config) string {
	if cfg.Site.DefaultRealm != "" {
		return cfg.Site.DefaultRealm
	}
	return "/"
}

// openStore returns the profile store selected by devices.store.
// rdb must be non-nil for the redis store.
func openStore(cfg *config.Config, db *database.DB, rdb goredis.UniversalClient) (devices.Store, error) {
	switch cfg.Devices.Store {
	case config.StoreSQLite:
		return devices.NewSQLiteStore(db.DB), nil
	case config.StoreMemory:
		return devices.NewMemoryStore(), nil
	case config.StoreRedis:
		if rdb == nil {
			return nil, errors.New("redis store selected without a Redis connection")
		}
		return devices.NewRedisStore(rdb, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown device store %q", cfg.Devices.Store)
	}
}

// healthFunc adapts a function to api.HealthChecker.
type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// healthCheck verifies the database and every optional component.
// It returns the first failure.
func healthCheck(ctx context.Context, db *database.DB, checks map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
