package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Booking       BookingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PESTGUARD_APP_ENV" required:"true"`
	Port         string `envconfig:"PESTGUARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PESTGUARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PESTGUARD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"PESTGUARD_DB_DSN"`

	LegacyHost     string `envconfig:"PESTGUARD_DB_HOST"`
	LegacyPort     int    `envconfig:"PESTGUARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PESTGUARD_DB_USER"`
	LegacyPassword string `envconfig:"PESTGUARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"PESTGUARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"PESTGUARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PESTGUARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PESTGUARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PESTGUARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PESTGUARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// StatementTimeout bounds every statement inside WithTx; zero disables it.
	StatementTimeout time.Duration `envconfig:"PESTGUARD_DB_STATEMENT_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PESTGUARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PESTGUARD_REDIS_ADDR"`
	Password     string        `envconfig:"PESTGUARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"PESTGUARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PESTGUARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PESTGUARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PESTGUARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PESTGUARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PESTGUARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PESTGUARD_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PESTGUARD_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PESTGUARD_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PESTGUARD_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PESTGUARD_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PESTGUARD_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PESTGUARD_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PESTGUARD_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PESTGUARD_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"PESTGUARD_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"PESTGUARD_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"PESTGUARD_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"PESTGUARD_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"PESTGUARD_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"PESTGUARD_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PESTGUARD_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PESTGUARD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PESTGUARD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PESTGUARD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BookingTopic        string `envconfig:"PESTGUARD_PUBSUB_BOOKING_TOPIC" default:"pg-booking-events"`
	BookingSubscription string `envconfig:"PESTGUARD_PUBSUB_BOOKING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"PESTGUARD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PESTGUARD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PESTGUARD_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"PESTGUARD_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PESTGUARD_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"PESTGUARD_CRON_LOCK_TTL" default:"4m"`
}

type BookingConfig struct {
	// PendingGrace is how long past starts_at a pending booking survives before expiry.
	PendingGrace     time.Duration `envconfig:"PESTGUARD_BOOKING_PENDING_GRACE" default:"1h"`
	MaxNotesLength   int           `envconfig:"PESTGUARD_BOOKING_MAX_NOTES_LENGTH" default:"2000"`
	MinAddressLength int           `envconfig:"PESTGUARD_BOOKING_MIN_ADDRESS_LENGTH" default:"5"`
	ExpiryBatchSize  int           `envconfig:"PESTGUARD_BOOKING_EXPIRY_BATCH_SIZE" default:"100"`
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
