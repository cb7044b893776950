package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/insightflow-backend/internal/clients/httpfetch"
	"github.com/yungbote/insightflow-backend/internal/clients/redis"
	"github.com/yungbote/insightflow-backend/internal/clients/unsplash"
	"github.com/yungbote/insightflow-backend/internal/data/db"
	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/envutil"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type Config struct {
	Port           string        `yaml:"port"`
	LogMode        string        `yaml:"log_mode"`
	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	RPCTimeout     time.Duration `yaml:"rpc_timeout"`
	AllowedOrigins []string      `yaml:"cors_allowed_origins"`

	DB       db.Config                `yaml:"db"`
	Redis    redis.Config             `yaml:"redis"`
	Unsplash unsplash.Config          `yaml:"unsplash"`
	Dataset  DatasetConfig            `yaml:"dataset"`
	GCS      GCSConfig                `yaml:"gcs"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Otel     observability.OtelConfig `yaml:"otel"`
}

type DatasetConfig struct {
	Fetch    httpfetch.Config `yaml:"fetch"`
	CacheTTL time.Duration    `yaml:"cache_ttl"`
}

type GCSConfig struct {
	Enabled bool `yaml:"enabled"`
	// Credentials is inline JSON or a key file path; empty uses application
	// default credentials.
	Credentials string `yaml:"credentials"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func defaultConfig() Config {
	return Config{
		Port:       "8080",
		LogMode:    "development",
		RPCTimeout: 15 * time.Second,
		DB: db.Config{
			Driver:       db.DriverPostgres,
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresName: "insightflow",
			SQLitePath:   "insightflow.db",
		},
		Dataset: DatasetConfig{CacheTTL: 10 * time.Minute},
		Metrics: MetricsConfig{Addr: ":9090"},
		Otel:    observability.OtelConfig{ServiceName: "insightflow-backend", SampleRatio: 1},
	}
}

// LoadConfig reads CONFIG_FILE when set, then lets the environment override
// individual keys.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.RPCTimeout = envutil.Seconds("RPC_TIMEOUT_SECONDS", cfg.RPCTimeout)
	cfg.AllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.DB.Driver = strings.ToLower(envutil.String("DB_DRIVER", cfg.DB.Driver))
	cfg.DB.PostgresHost = envutil.String("POSTGRES_HOST", cfg.DB.PostgresHost)
	cfg.DB.PostgresPort = envutil.String("POSTGRES_PORT", cfg.DB.PostgresPort)
	cfg.DB.PostgresUser = envutil.String("POSTGRES_USER", cfg.DB.PostgresUser)
	cfg.DB.PostgresPassword = envutil.String("POSTGRES_PASSWORD", cfg.DB.PostgresPassword)
	cfg.DB.PostgresName = envutil.String("POSTGRES_NAME", cfg.DB.PostgresName)
	cfg.DB.PostgresSSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.PostgresSSLMode)
	cfg.DB.DSN = envutil.String("POSTGRES_DSN", cfg.DB.DSN)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)

	cfg.Unsplash.AccessKey = envutil.String("UNSPLASH_ACCESS_KEY", cfg.Unsplash.AccessKey)
	cfg.Unsplash.BaseURL = envutil.String("UNSPLASH_BASE_URL", cfg.Unsplash.BaseURL)
	cfg.Unsplash.RPS = envutil.Float("UNSPLASH_RPS", cfg.Unsplash.RPS)
	cfg.Unsplash.Burst = envutil.Int("UNSPLASH_BURST", cfg.Unsplash.Burst)

	cfg.Dataset.Fetch.MaxBytes = envutil.Int64("DATASET_MAX_BYTES", cfg.Dataset.Fetch.MaxBytes)
	cfg.Dataset.Fetch.Timeout = envutil.Seconds("DATASET_FETCH_TIMEOUT_SECONDS", cfg.Dataset.Fetch.Timeout)
	cfg.Dataset.CacheTTL = envutil.Seconds("DATASET_CACHE_TTL_SECONDS", cfg.Dataset.CacheTTL)

	cfg.GCS.Credentials = envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON",
		envutil.String("GOOGLE_APPLICATION_CREDENTIALS", cfg.GCS.Credentials))
	cfg.GCS.Enabled = envutil.Bool("GCS_ENABLED", cfg.GCS.Enabled || cfg.GCS.Credentials != "")

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	if h := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); h != "" {
		cfg.Otel.Headers = observability.ParseHeaders(h)
	}
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.DB.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT_SECONDS must be positive")
	}
	return nil
}
