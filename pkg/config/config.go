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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Rental       RentalConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Rental.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EQUIPRENT_APP_ENV" required:"true"`
	Port         string `envconfig:"EQUIPRENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EQUIPRENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EQUIPRENT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"EQUIPRENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"EQUIPRENT_DB_DSN"`
	Driver string `envconfig:"EQUIPRENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EQUIPRENT_DB_HOST"`
	LegacyPort     int    `envconfig:"EQUIPRENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EQUIPRENT_DB_USER"`
	LegacyPassword string `envconfig:"EQUIPRENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"EQUIPRENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"EQUIPRENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EQUIPRENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EQUIPRENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EQUIPRENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EQUIPRENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EQUIPRENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EQUIPRENT_REDIS_ADDR"`
	Password     string        `envconfig:"EQUIPRENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"EQUIPRENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EQUIPRENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EQUIPRENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EQUIPRENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EQUIPRENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EQUIPRENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"EQUIPRENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"EQUIPRENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"EQUIPRENT_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token TTL configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"EQUIPRENT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"EQUIPRENT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"EQUIPRENT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"EQUIPRENT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"EQUIPRENT_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"EQUIPRENT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"EQUIPRENT_AUTO_MIGRATE" default:"false"`
}

// RentalConfig carries the reservation engine knobs. LockMode selects the
// per-item mutual exclusion strategy: "local" is correct only for a single
// API replica, "redis" is required once replicas scale out.
type RentalConfig struct {
	LockMode        string        `envconfig:"EQUIPRENT_LOCK_MODE" default:"local"`
	LockTTL         time.Duration `envconfig:"EQUIPRENT_LOCK_TTL" default:"10s"`
	PendingGrace    time.Duration `envconfig:"EQUIPRENT_PENDING_GRACE" default:"1h"`
	DefaultCurrency string        `envconfig:"EQUIPRENT_DEFAULT_CURRENCY" default:"LKR"`
}

func (r RentalConfig) validate() error {
	switch r.LockMode {
	case LockModeLocal, LockModeRedis:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvLockMode, LockModeLocal, LockModeRedis, r.LockMode)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"EQUIPRENT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"EQUIPRENT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"EQUIPRENT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"EQUIPRENT_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"EQUIPRENT_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"EQUIPRENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"EQUIPRENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"EQUIPRENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	ExpirySweepInterval time.Duration `envconfig:"EQUIPRENT_CRON_EXPIRY_SWEEP_INTERVAL" default:"1m"`
	LockTTL             time.Duration `envconfig:"EQUIPRENT_CRON_LOCK_TTL" default:"5m"`
	MetricsPort         string        `envconfig:"EQUIPRENT_CRON_METRICS_PORT" default:"9091"`
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
