package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "PESTGUARD"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PESTGUARD_APP_ENV"
	EnvPort     = "PESTGUARD_APP_PORT"
	EnvLogLevel = "PESTGUARD_LOG_LEVEL"

	EnvDBDSN              = "PESTGUARD_DB_DSN"
	EnvDBHost             = "PESTGUARD_DB_HOST"
	EnvDBUser             = "PESTGUARD_DB_USER"
	EnvDBName             = "PESTGUARD_DB_NAME"
	EnvDBStatementTimeout = "PESTGUARD_DB_STATEMENT_TIMEOUT"

	EnvRedisURL = "PESTGUARD_REDIS_URL"

	EnvJWTSecret              = "PESTGUARD_JWT_SECRET"
	EnvJWTIssuer              = "PESTGUARD_JWT_ISSUER"
	EnvJWTExpMins             = "PESTGUARD_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "PESTGUARD_REFRESH_TOKEN_TTL_MINUTES"

	EnvGCPProjectID        = "PESTGUARD_GCP_PROJECT_ID"
	EnvPubSubBookingTopic  = "PESTGUARD_PUBSUB_BOOKING_TOPIC"
	EnvPubSubBookingSub    = "PESTGUARD_PUBSUB_BOOKING_SUBSCRIPTION"
	EnvBookingPendingGrace = "PESTGUARD_BOOKING_PENDING_GRACE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
