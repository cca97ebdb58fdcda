package config

// EnvPrefix is handed to envconfig; every field carries its full name so the
// prefix only matters for fields without an explicit tag.
const EnvPrefix = "ROASTERY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv           = "ROASTERY_APP_ENV"
	EnvPort             = "ROASTERY_APP_PORT"
	EnvLogLevel         = "ROASTERY_LOG_LEVEL"
	EnvDBDSN            = "ROASTERY_DB_DSN"
	EnvDBDriver         = "ROASTERY_DB_DRIVER"
	EnvDBHost           = "ROASTERY_DB_HOST"
	EnvDBUser           = "ROASTERY_DB_USER"
	EnvDBName           = "ROASTERY_DB_NAME"
	EnvRedisURL         = "ROASTERY_REDIS_URL"
	EnvJWTSecret        = "ROASTERY_JWT_SECRET"
	EnvJWTIssuer        = "ROASTERY_JWT_ISSUER"
	EnvJWTExpMins       = "ROASTERY_JWT_EXPIRATION_MINUTES"
	EnvStripeAPIKey     = "ROASTERY_STRIPE_API_KEY"
	EnvStripeSecret     = "ROASTERY_STRIPE_SECRET"
	EnvCORSOrigins      = "ROASTERY_CORS_ORIGINS"
	EnvPollInterval     = "ROASTERY_CHECKOUT_POLL_INTERVAL"
	EnvPollAttempts     = "ROASTERY_CHECKOUT_MAX_POLL_ATTEMPTS"
	EnvAutoMigrate      = "ROASTERY_AUTO_MIGRATE"
	EnvCronInterval     = "ROASTERY_CRON_INTERVAL"
	EnvStorefrontAPIURL = "ROASTERY_STOREFRONT_API_URL"
	EnvStorefrontDevice = "ROASTERY_STOREFRONT_DEVICE_PATH"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
