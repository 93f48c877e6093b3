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
	FeatureFlags FeatureFlagsConfig
	Automation   AutomationConfig
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
	Env          string `envconfig:"BRANDOPS_APP_ENV" required:"true"`
	Port         string `envconfig:"BRANDOPS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BRANDOPS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BRANDOPS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BRANDOPS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BRANDOPS_DB_DSN"`
	Driver string `envconfig:"BRANDOPS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BRANDOPS_DB_HOST"`
	LegacyPort     int    `envconfig:"BRANDOPS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BRANDOPS_DB_USER"`
	LegacyPassword string `envconfig:"BRANDOPS_DB_PASSWORD"`
	LegacyName     string `envconfig:"BRANDOPS_DB_NAME"`
	LegacySSLMode  string `envconfig:"BRANDOPS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BRANDOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BRANDOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BRANDOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BRANDOPS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BRANDOPS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BRANDOPS_REDIS_ADDR"`
	Password     string        `envconfig:"BRANDOPS_REDIS_PASSWORD"`
	DB           int           `envconfig:"BRANDOPS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BRANDOPS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BRANDOPS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BRANDOPS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BRANDOPS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BRANDOPS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BRANDOPS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BRANDOPS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BRANDOPS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BRANDOPS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BRANDOPS_AUTO_MIGRATE" default:"false"`
}

// AutomationConfig tunes the event bus, dispatcher, scheduler, and executor.
type AutomationConfig struct {
	BusQueueSize       int           `envconfig:"BRANDOPS_AUTOMATION_BUS_QUEUE_SIZE" default:"1024"`
	BusWorkers         int           `envconfig:"BRANDOPS_AUTOMATION_BUS_WORKERS" default:"8"`
	MaxCausationDepth  int           `envconfig:"BRANDOPS_AUTOMATION_MAX_CAUSATION_DEPTH" default:"5"`
	ActionTimeout      time.Duration `envconfig:"BRANDOPS_AUTOMATION_ACTION_TIMEOUT" default:"10s"`
	SweepInterval      time.Duration `envconfig:"BRANDOPS_AUTOMATION_SWEEP_INTERVAL" default:"1m"`
	SchedulerLockTTL   time.Duration `envconfig:"BRANDOPS_AUTOMATION_SCHEDULER_LOCK_TTL" default:"5m"`
	ActivityRetention  int           `envconfig:"BRANDOPS_AUTOMATION_ACTIVITY_RETENTION_DAYS" default:"90"`
	WebhookMaxBodySize int64         `envconfig:"BRANDOPS_AUTOMATION_WEBHOOK_MAX_BODY_BYTES" default:"65536"`
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
