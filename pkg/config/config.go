package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App              AppConfig
	Service          ServiceConfig
	DB               DBConfig
	Redis            RedisConfig
	Dispatch         DispatchConfig
	Messaging        MessagingConfig
	Confirm          ConfirmConfig
	Geocode          GeocodeConfig
	Offers           OffersConfig
	Scheduling       SchedulingConfig
	ConfirmRateLimit ConfirmRateLimitConfig
	FeatureFlags     FeatureFlagsConfig
	GCP              GCPConfig
	PubSub           PubSubConfig
	Outbox           OutboxConfig
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
	Env          string `envconfig:"BOXVALET_APP_ENV" required:"true"`
	Port         string `envconfig:"BOXVALET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOXVALET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOXVALET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOXVALET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOXVALET_DB_DSN"`
	Driver string `envconfig:"BOXVALET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOXVALET_DB_HOST"`
	LegacyPort     int    `envconfig:"BOXVALET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOXVALET_DB_USER"`
	LegacyPassword string `envconfig:"BOXVALET_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOXVALET_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOXVALET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOXVALET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOXVALET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOXVALET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOXVALET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOXVALET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOXVALET_REDIS_ADDR"`
	Password     string        `envconfig:"BOXVALET_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOXVALET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOXVALET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOXVALET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOXVALET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOXVALET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOXVALET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DispatchConfig carries the external dispatch platform credentials plus the
// container ids that used to live as ad-hoc environment reads.
type DispatchConfig struct {
	BaseURL            string        `envconfig:"BOXVALET_DISPATCH_BASE_URL" required:"true"`
	APIKey             string        `envconfig:"BOXVALET_DISPATCH_API_KEY" required:"true"`
	DefaultContainerID string        `envconfig:"BOXVALET_DISPATCH_DEFAULT_CONTAINER_ID" required:"true"`
	RequestTimeout     time.Duration `envconfig:"BOXVALET_DISPATCH_REQUEST_TIMEOUT" default:"10s"`
}

type MessagingConfig struct {
	BaseURL     string        `envconfig:"BOXVALET_MESSAGING_BASE_URL" required:"true"`
	APIKey      string        `envconfig:"BOXVALET_MESSAGING_API_KEY"`
	FromNumber  string        `envconfig:"BOXVALET_MESSAGING_FROM_NUMBER"`
	FromEmail   string        `envconfig:"BOXVALET_MESSAGING_FROM_EMAIL"`
	SendTimeout time.Duration `envconfig:"BOXVALET_MESSAGING_SEND_TIMEOUT" default:"5s"`
}

// ConfirmConfig signs the reconfirmation links sent to field workers.
type ConfirmConfig struct {
	Secret      string        `envconfig:"BOXVALET_CONFIRM_SECRET" required:"true"`
	Issuer      string        `envconfig:"BOXVALET_CONFIRM_ISSUER" default:"boxvalet"`
	TokenTTL    time.Duration `envconfig:"BOXVALET_CONFIRM_TOKEN_TTL" default:"48h"`
	LinkBaseURL string        `envconfig:"BOXVALET_CONFIRM_LINK_BASE_URL" required:"true"`
}

type GeocodeConfig struct {
	BaseURL string `envconfig:"BOXVALET_GEOCODE_BASE_URL"`
	APIKey  string `envconfig:"BOXVALET_GEOCODE_API_KEY"`
}

type OffersConfig struct {
	TTL           time.Duration `envconfig:"BOXVALET_OFFER_TTL" default:"20m"`
	SweepInterval time.Duration `envconfig:"BOXVALET_OFFER_SWEEP_INTERVAL" default:"1m"`
}

// SchedulingConfig holds the per-unit service timing used to derive task
// arrival windows from the appointment time.
type SchedulingConfig struct {
	UnitServiceDuration time.Duration `envconfig:"BOXVALET_UNIT_SERVICE_DURATION" default:"30m"`
	TaskWindowPadding   time.Duration `envconfig:"BOXVALET_TASK_WINDOW_PADDING" default:"15m"`
	BookingWindowRadius time.Duration `envconfig:"BOXVALET_BOOKING_WINDOW_RADIUS" default:"1h"`
}

type ConfirmRateLimitConfig struct {
	Window   time.Duration `envconfig:"BOXVALET_CONFIRM_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit  int           `envconfig:"BOXVALET_CONFIRM_RATE_LIMIT_IP_LIMIT" default:"30"`
	KeyLimit int           `envconfig:"BOXVALET_CONFIRM_RATE_LIMIT_KEY_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOXVALET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOXVALET_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BOXVALET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BOXVALET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BOXVALET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AppointmentsTopic        string `envconfig:"BOXVALET_PUBSUB_APPOINTMENTS_TOPIC" default:"bv-appointment-events"`
	AppointmentsSubscription string `envconfig:"BOXVALET_PUBSUB_APPOINTMENTS_SUBSCRIPTION"`
	RoutesTopic              string `envconfig:"BOXVALET_PUBSUB_ROUTES_TOPIC" default:"bv-route-events"`
	RoutesSubscription       string `envconfig:"BOXVALET_PUBSUB_ROUTES_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BOXVALET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BOXVALET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BOXVALET_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
