package config

// EnvPrefix is intentionally empty: every variable carries the full
// EQUIPRENT_ prefix in its envconfig tag so the names stay greppable.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "EQUIPRENT_APP_ENV"
	EnvPort     = "EQUIPRENT_APP_PORT"
	EnvLogLevel = "EQUIPRENT_LOG_LEVEL"

	EnvDBDSN  = "EQUIPRENT_DB_DSN"
	EnvDBHost = "EQUIPRENT_DB_HOST"
	EnvDBUser = "EQUIPRENT_DB_USER"
	EnvDBName = "EQUIPRENT_DB_NAME"

	EnvRedisURL = "EQUIPRENT_REDIS_URL"

	EnvJWTSecret  = "EQUIPRENT_JWT_SECRET"
	EnvJWTIssuer  = "EQUIPRENT_JWT_ISSUER"
	EnvJWTExpMins = "EQUIPRENT_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "EQUIPRENT_GCP_PROJECT_ID"

	EnvPubSubDomainTopic = "EQUIPRENT_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "EQUIPRENT_PUBSUB_DOMAIN_SUBSCRIPTION"

	EnvLockMode = "EQUIPRENT_LOCK_MODE"
)

// legacyDBEnvVars are the discrete connection variables that must all be
// present when EQUIPRENT_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Lock modes accepted by EQUIPRENT_LOCK_MODE.
const (
	LockModeLocal = "local"
	LockModeRedis = "redis"
)
