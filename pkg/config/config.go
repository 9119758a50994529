package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Inventory    InventoryConfig
	Storage      StorageConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Tracing      TracingConfig
	Retention    RetentionConfig
	Session      SessionConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Inventory.Mode = strings.ToLower(strings.TrimSpace(c.Inventory.Mode))
	switch c.Inventory.Mode {
	case InventoryModeRemote:
		if strings.TrimSpace(c.Inventory.BaseURL) == "" {
			return fmt.Errorf("%s is required when inventory mode is %q", EnvInventoryBaseURL, InventoryModeRemote)
		}
		if _, err := url.ParseRequestURI(c.Inventory.BaseURL); err != nil {
			return fmt.Errorf("parsing %s: %w", EnvInventoryBaseURL, err)
		}
	case InventoryModeLocal:
		if strings.TrimSpace(c.Inventory.SeedPath) == "" {
			return fmt.Errorf("%s is required when inventory mode is %q", EnvInventorySeedPath, InventoryModeLocal)
		}
	default:
		return fmt.Errorf("unsupported inventory mode %q", c.Inventory.Mode)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return fmt.Errorf("%s is required for the file storage driver", EnvStorageDir)
		}
	case StorageDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis storage driver", EnvRedisURL, EnvRedisAddr)
		}
	case StorageDriverPostgres:
		c.DB.Driver = DBDriverPostgres
		if err := c.DB.ensureDSN(); err != nil {
			return err
		}
	case StorageDriverSQLite:
		c.DB.Driver = DBDriverSQLite
		if c.DB.DSN == "" {
			c.DB.DSN = defaultSQLiteDSN
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	return nil
}

type AppConfig struct {
	Env            string   `envconfig:"ROCKETSHOES_APP_ENV" required:"true"`
	Port           string   `envconfig:"ROCKETSHOES_APP_PORT" default:"8080"`
	LogLevel       string   `envconfig:"ROCKETSHOES_LOG_LEVEL" default:"info"`
	LogFormat      string   `envconfig:"ROCKETSHOES_LOG_FORMAT" default:"json"`
	LogWarnStack   bool     `envconfig:"ROCKETSHOES_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"ROCKETSHOES_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ROCKETSHOES_DB_DSN"`
	Driver string `envconfig:"ROCKETSHOES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ROCKETSHOES_DB_HOST"`
	LegacyPort     int    `envconfig:"ROCKETSHOES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ROCKETSHOES_DB_USER"`
	LegacyPassword string `envconfig:"ROCKETSHOES_DB_PASSWORD"`
	LegacyName     string `envconfig:"ROCKETSHOES_DB_NAME"`
	LegacySSLMode  string `envconfig:"ROCKETSHOES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ROCKETSHOES_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"ROCKETSHOES_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"ROCKETSHOES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROCKETSHOES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ROCKETSHOES_REDIS_URL"`
	Address      string        `envconfig:"ROCKETSHOES_REDIS_ADDR"`
	Password     string        `envconfig:"ROCKETSHOES_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROCKETSHOES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROCKETSHOES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROCKETSHOES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROCKETSHOES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROCKETSHOES_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"ROCKETSHOES_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type InventoryConfig struct {
	Mode     string        `envconfig:"ROCKETSHOES_INVENTORY_MODE" default:"remote"`
	BaseURL  string        `envconfig:"ROCKETSHOES_INVENTORY_BASE_URL"`
	Timeout  time.Duration `envconfig:"ROCKETSHOES_INVENTORY_TIMEOUT" default:"5s"`
	SeedPath string        `envconfig:"ROCKETSHOES_INVENTORY_SEED_PATH"`
}

type StorageConfig struct {
	Driver string        `envconfig:"ROCKETSHOES_STORAGE_DRIVER" default:"file"`
	Dir    string        `envconfig:"ROCKETSHOES_STORAGE_DIR" default:"./data/carts"`
	TTL    time.Duration `envconfig:"ROCKETSHOES_STORAGE_TTL" default:"0s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ROCKETSHOES_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"ROCKETSHOES_PUBSUB_NOTIFICATION_TOPIC"`
}

// Enabled reports whether notifications should also be published to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.NotificationTopic) != ""
}

type TracingConfig struct {
	Endpoint    string  `envconfig:"ROCKETSHOES_OTEL_ENDPOINT"`
	Insecure    bool    `envconfig:"ROCKETSHOES_OTEL_INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"ROCKETSHOES_OTEL_SAMPLE_RATIO" default:"1"`
}

// RetentionConfig drives the snapshot retention worker.
type RetentionConfig struct {
	MaxAge   time.Duration `envconfig:"ROCKETSHOES_RETENTION_MAX_AGE" default:"720h"`
	Interval time.Duration `envconfig:"ROCKETSHOES_RETENTION_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"ROCKETSHOES_RETENTION_LOCK_TTL" default:"1h"`
}

// SessionConfig bounds the carts the API keeps in memory.
type SessionConfig struct {
	IdleTTL       time.Duration `envconfig:"ROCKETSHOES_SESSION_IDLE_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"ROCKETSHOES_SESSION_SWEEP_INTERVAL" default:"1m"`
	MaxSessions   int           `envconfig:"ROCKETSHOES_SESSION_MAX" default:"10000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ROCKETSHOES_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
