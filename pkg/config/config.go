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
	FeatureFlags FeatureFlagsConfig
	POS          POSConfig
	Cron         CronConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"ATHENA_APP_ENV" required:"true"`
	Port         string `envconfig:"ATHENA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ATHENA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ATHENA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ATHENA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ATHENA_DB_DSN"`
	Driver string `envconfig:"ATHENA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ATHENA_DB_HOST"`
	LegacyPort     int    `envconfig:"ATHENA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ATHENA_DB_USER"`
	LegacyPassword string `envconfig:"ATHENA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ATHENA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ATHENA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ATHENA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ATHENA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ATHENA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ATHENA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ATHENA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ATHENA_REDIS_ADDR"`
	Password     string        `envconfig:"ATHENA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ATHENA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ATHENA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ATHENA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ATHENA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ATHENA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ATHENA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ATHENA_AUTO_MIGRATE" default:"false"`
}

// POSConfig tunes the point-of-sale session engine.
type POSConfig struct {
	// IdleWindow is the sliding expiration applied to active sessions; every
	// cart mutation pushes expires_at forward by this much.
	IdleWindow time.Duration `envconfig:"ATHENA_POS_IDLE_WINDOW" default:"20m"`
	// ReaperInterval is how often the expiration sweep runs.
	ReaperInterval time.Duration `envconfig:"ATHENA_POS_REAPER_INTERVAL" default:"10m"`
	// RetentionDays is the grace window before completed/void/expired
	// sessions become eligible for deletion.
	RetentionDays int `envconfig:"ATHENA_POS_RETENTION_DAYS" default:"90"`
}

// ReaperIntervalFor returns the sweep cadence for the given environment;
// non-production environments sweep hourly to cut log noise.
func (p POSConfig) ReaperIntervalFor(appEnv string) time.Duration {
	if strings.EqualFold(appEnv, AppEnvProd) {
		return p.ReaperInterval
	}
	if p.ReaperInterval != 10*time.Minute {
		return p.ReaperInterval
	}
	return time.Hour
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ATHENA_CRON_INTERVAL" default:"10m"`
	LockTTL  time.Duration `envconfig:"ATHENA_CRON_LOCK_TTL" default:"15m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ATHENA_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ATHENA_OUTBOX_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ATHENA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// PollInterval returns the poll cadence for the finalizer worker.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
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
