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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	CORS          CORSConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	Cron          CronConfig
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
	Env          string `envconfig:"ROASTERY_APP_ENV" required:"true"`
	Port         string `envconfig:"ROASTERY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ROASTERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ROASTERY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ROASTERY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ROASTERY_DB_DSN"`
	Driver string `envconfig:"ROASTERY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ROASTERY_DB_HOST"`
	LegacyPort     int    `envconfig:"ROASTERY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ROASTERY_DB_USER"`
	LegacyPassword string `envconfig:"ROASTERY_DB_PASSWORD"`
	LegacyName     string `envconfig:"ROASTERY_DB_NAME"`
	LegacySSLMode  string `envconfig:"ROASTERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ROASTERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ROASTERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ROASTERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROASTERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"ROASTERY_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the configured driver targets a sqlite file.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ROASTERY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ROASTERY_REDIS_ADDR"`
	Password     string        `envconfig:"ROASTERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROASTERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROASTERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROASTERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROASTERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROASTERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ROASTERY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ROASTERY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ROASTERY_JWT_ISSUER" default:"rtw-roastery"`
	ExpirationMinutes int    `envconfig:"ROASTERY_JWT_EXPIRATION_MINUTES" default:"43200"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ROASTERY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ROASTERY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ROASTERY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ROASTERY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ROASTERY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ROASTERY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ROASTERY_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ROASTERY_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ROASTERY_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ROASTERY_CORS_ORIGINS" default:"http://localhost:3000"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ROASTERY_STRIPE_API_KEY"`
	Secret string `envconfig:"ROASTERY_STRIPE_SECRET"`
	Env    string `envconfig:"ROASTERY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	Currency             string        `envconfig:"ROASTERY_CHECKOUT_CURRENCY" default:"usd"`
	PollInterval         time.Duration `envconfig:"ROASTERY_CHECKOUT_POLL_INTERVAL" default:"2s"`
	MaxPollAttempts      int           `envconfig:"ROASTERY_CHECKOUT_MAX_POLL_ATTEMPTS" default:"5"`
	ReconcileGrace       time.Duration `envconfig:"ROASTERY_CHECKOUT_RECONCILE_GRACE" default:"15m"`
	StatusCacheTTL       time.Duration `envconfig:"ROASTERY_CHECKOUT_STATUS_CACHE_TTL" default:"24h"`
	WebhookIdempotentTTL time.Duration `envconfig:"ROASTERY_CHECKOUT_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"ROASTERY_CRON_INTERVAL" default:"5m"`
	JobTimeout time.Duration `envconfig:"ROASTERY_CRON_JOB_TIMEOUT" default:"2m"`
}

// StorefrontConfig configures the device-side CLI. It is loaded separately
// because the CLI never needs database or redis credentials.
type StorefrontConfig struct {
	APIBaseURL   string        `envconfig:"ROASTERY_STOREFRONT_API_URL" default:"http://localhost:8080"`
	DevicePath   string        `envconfig:"ROASTERY_STOREFRONT_DEVICE_PATH" default:"roastery-device.db"`
	ReturnOrigin string        `envconfig:"ROASTERY_STOREFRONT_RETURN_ORIGIN" default:"http://localhost:3000"`
	HTTPTimeout  time.Duration `envconfig:"ROASTERY_STOREFRONT_HTTP_TIMEOUT" default:"10s"`
	LogLevel     string        `envconfig:"ROASTERY_LOG_LEVEL" default:"warn"`
	Checkout     CheckoutConfig
}

// LoadStorefront reads the storefront CLI configuration.
func LoadStorefront() (*StorefrontConfig, error) {
	var cfg StorefrontConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing storefront config: %w", err)
	}
	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvStorefrontAPIURL, err)
	}
	return &cfg, nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
