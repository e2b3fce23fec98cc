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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ordering     OrderingConfig
	Settlement   SettlementConfig
	Realtime     RealtimeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Ordering.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TABLESERVE_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLESERVE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLESERVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLESERVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"TABLESERVE_DB_DSN"`

	LegacyHost     string `envconfig:"TABLESERVE_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLESERVE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLESERVE_DB_USER"`
	LegacyPassword string `envconfig:"TABLESERVE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLESERVE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLESERVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLESERVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLESERVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLESERVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLESERVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"TABLESERVE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLESERVE_REDIS_URL"`
	Address      string        `envconfig:"TABLESERVE_REDIS_ADDR"`
	Password     string        `envconfig:"TABLESERVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLESERVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLESERVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLESERVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLESERVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLESERVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLESERVE_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"TABLESERVE_REDIS_KEY_PREFIX" default:"ts"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TABLESERVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TABLESERVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TABLESERVE_JWT_EXPIRATION_MINUTES" default:"720"`
	// RequireSession rejects tokens whose jti has no live session in redis.
	RequireSession bool `envconfig:"TABLESERVE_JWT_REQUIRE_SESSION" default:"false"`
}

// AccessTTL returns the access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TABLESERVE_AUTO_MIGRATE" default:"false"`
}

type OrderingConfig struct {
	TimeZone              string        `envconfig:"TABLESERVE_ORDERING_TIME_ZONE" default:"Asia/Kolkata"`
	Currency              string        `envconfig:"TABLESERVE_ORDERING_CURRENCY" default:"INR"`
	TxTimeout             time.Duration `envconfig:"TABLESERVE_ORDERING_TX_TIMEOUT" default:"15s"`
	OrderNumberAttempts   int           `envconfig:"TABLESERVE_ORDERING_ORDER_NUMBER_ATTEMPTS" default:"3"`
	ReadBackAttempts      int           `envconfig:"TABLESERVE_ORDERING_READBACK_ATTEMPTS" default:"3"`
	ReadBackRetryInterval time.Duration `envconfig:"TABLESERVE_ORDERING_READBACK_RETRY_INTERVAL" default:"100ms"`
}

// Location resolves the business time zone used for order numbers and transaction ids.
func (o OrderingConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(o.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

type SettlementConfig struct {
	GroupWindow    time.Duration `envconfig:"TABLESERVE_SETTLEMENT_GROUP_WINDOW" default:"24h"`
	SplitEpsilon   string        `envconfig:"TABLESERVE_SETTLEMENT_SPLIT_EPSILON" default:"0.01"`
	LockTTL        time.Duration `envconfig:"TABLESERVE_SETTLEMENT_LOCK_TTL" default:"30s"`
	TxTimeout      time.Duration `envconfig:"TABLESERVE_SETTLEMENT_TX_TIMEOUT" default:"15s"`
	CallbackSecret string        `envconfig:"TABLESERVE_SETTLEMENT_CALLBACK_SECRET"`
}

type RealtimeConfig struct {
	SendBuffer     int           `envconfig:"TABLESERVE_REALTIME_SEND_BUFFER" default:"64"`
	WriteWait      time.Duration `envconfig:"TABLESERVE_REALTIME_WRITE_WAIT" default:"10s"`
	PongWait       time.Duration `envconfig:"TABLESERVE_REALTIME_PONG_WAIT" default:"60s"`
	PingInterval   time.Duration `envconfig:"TABLESERVE_REALTIME_PING_INTERVAL" default:"50s"`
	MaxMessageSize int64         `envconfig:"TABLESERVE_REALTIME_MAX_MESSAGE_BYTES" default:"4096"`
	AllowedOrigins []string      `envconfig:"TABLESERVE_REALTIME_ALLOWED_ORIGINS"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TABLESERVE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrderEventsTopic   string `envconfig:"TABLESERVE_PUBSUB_ORDER_EVENTS_TOPIC" default:"ts-order-events"`
	PaymentEventsTopic string `envconfig:"TABLESERVE_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"ts-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TABLESERVE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TABLESERVE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TABLESERVE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"TABLESERVE_CRON_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"TABLESERVE_CRON_LOCK_TTL" default:"55m"`
	OutboxRetentionDays int           `envconfig:"TABLESERVE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays    int           `envconfig:"TABLESERVE_CRON_DLQ_RETENTION_DAYS" default:"90"`
}

type HTTPConfig struct {
	CORSOrigins          []string      `envconfig:"TABLESERVE_HTTP_CORS_ORIGINS" default:"http://localhost:3000"`
	CallbackRateLimit    int           `envconfig:"TABLESERVE_HTTP_CALLBACK_RATE_LIMIT" default:"120"`
	CallbackRateWindow   time.Duration `envconfig:"TABLESERVE_HTTP_CALLBACK_RATE_WINDOW" default:"1m"`
	CallbackMaxBodyBytes int64         `envconfig:"TABLESERVE_HTTP_CALLBACK_MAX_BODY_BYTES" default:"65536"`
	ReadHeaderTimeout    time.Duration `envconfig:"TABLESERVE_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout      time.Duration `envconfig:"TABLESERVE_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
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
