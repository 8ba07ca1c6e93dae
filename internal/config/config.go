package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres  = "postgres"
	StorageDatastore = "datastore"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	Storage     string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Datastore   DatastoreConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Feed        FeedConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host        string
	Port        string
	ReadTimeout time.Duration
	IdleTimeout time.Duration
	MaxConn     int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type DatastoreConfig struct {
	ProjectID string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type AuthConfig struct {
	JWTSecret  string
	Issuer     string
	SessionTTL time.Duration
	BcryptCost int
}

type FeedConfig struct {
	ChannelPrefix     string
	HeartbeatInterval time.Duration
}

type BufferConfig struct {
	Path           string
	RetentionHours int
	SyncInterval   time.Duration
	BatchSize      int
	MaxRetry       int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the service can boot in development.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "tasksync"),
		Environment: getString("APP_ENV", "development"),
		Storage:     getString("STORAGE_DRIVER", StoragePostgres),
		HTTP: HTTPConfig{
			Host:        getString("SERVER_HOST", "0.0.0.0"),
			Port:        getString("SERVER_PORT", "8080"),
			ReadTimeout: getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			IdleTimeout: getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:     getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "tasksync"),
			User:            getString("DB_USER", "tasksync"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Datastore: DatastoreConfig{
			ProjectID: os.Getenv("GCP_PROJECT_ID"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			PoolSize: getInt("REDIS_POOL_SIZE", 0),
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			Issuer:     getString("JWT_ISSUER", "tasksync"),
			SessionTTL: getDuration("SESSION_TTL", 24*time.Hour),
			BcryptCost: getInt("BCRYPT_COST", 10),
		},
		Feed: FeedConfig{
			ChannelPrefix:     getString("FEED_CHANNEL_PREFIX", "tasks:"),
			HeartbeatInterval: getDuration("FEED_HEARTBEAT_INTERVAL", 15*time.Second),
		},
		Buffer: BufferConfig{
			Path:           getString("BOLTDB_PATH", "./data/buffer.db"),
			RetentionHours: getInt("BUFFER_RETENTION_HOURS", 24),
			SyncInterval:   getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			BatchSize:      getInt("BUFFER_BATCH_SIZE", 50),
			MaxRetry:       getInt("MAX_RETRY_ATTEMPTS", 3),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StoragePostgres:
	case StorageDatastore:
		if c.Datastore.ProjectID == "" {
			errs = append(errs, errors.New("GCP_PROJECT_ID is required for the datastore driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage))
	}
	if c.Auth.JWTSecret == "" {
		if c.IsDevelopment() {
			c.Auth.JWTSecret = "development-secret"
		} else {
			errs = append(errs, errors.New("JWT_SECRET is required outside development"))
		}
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
