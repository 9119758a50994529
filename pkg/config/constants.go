package config

const EnvPrefix = "ROCKETSHOES"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	InventoryModeRemote = "remote"
	InventoryModeLocal  = "local"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverFile     = "file"
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:rocketshoes.db?_busy_timeout=5000"
)

const (
	EnvAppEnv             = "ROCKETSHOES_APP_ENV"
	EnvPort               = "ROCKETSHOES_APP_PORT"
	EnvDBDSN              = "ROCKETSHOES_DB_DSN"
	EnvDBHost             = "ROCKETSHOES_DB_HOST"
	EnvDBUser             = "ROCKETSHOES_DB_USER"
	EnvDBName             = "ROCKETSHOES_DB_NAME"
	EnvRedisURL           = "ROCKETSHOES_REDIS_URL"
	EnvRedisAddr          = "ROCKETSHOES_REDIS_ADDR"
	EnvInventoryMode      = "ROCKETSHOES_INVENTORY_MODE"
	EnvInventoryBaseURL   = "ROCKETSHOES_INVENTORY_BASE_URL"
	EnvInventorySeedPath  = "ROCKETSHOES_INVENTORY_SEED_PATH"
	EnvStorageDriver      = "ROCKETSHOES_STORAGE_DRIVER"
	EnvStorageDir         = "ROCKETSHOES_STORAGE_DIR"
	EnvPubSubNotification = "ROCKETSHOES_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
