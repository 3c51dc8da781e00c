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
	LocalStore   LocalStoreConfig
	Redis        RedisConfig
	Sync         SyncConfig
	Orders       OrdersConfig
	FeatureFlags FeatureFlagsConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"COUNTERPOS_APP_ENV" required:"true"`
	Port         string   `envconfig:"COUNTERPOS_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"COUNTERPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"COUNTERPOS_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"COUNTERPOS_LOG_FORMAT" default:"json"`
	TerminalID   string   `envconfig:"COUNTERPOS_TERMINAL_ID" default:"counter-1"`
	CORSOrigins  []string `envconfig:"COUNTERPOS_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig describes the remote system of record.
type DBConfig struct {
	DSN string `envconfig:"COUNTERPOS_DB_DSN"`

	LegacyHost     string `envconfig:"COUNTERPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"COUNTERPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COUNTERPOS_DB_USER"`
	LegacyPassword string `envconfig:"COUNTERPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"COUNTERPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"COUNTERPOS_DB_SSLMODE" default:"disable"`

	// SQLitePath is used instead of the DSN when the SQLite feature flag is on.
	SQLitePath string `envconfig:"COUNTERPOS_DB_SQLITE_PATH" default:"data/counterpos-remote.db"`

	MaxOpenConns    int           `envconfig:"COUNTERPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COUNTERPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COUNTERPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COUNTERPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	ConnectTimeout  time.Duration `envconfig:"COUNTERPOS_DB_CONNECT_TIMEOUT" default:"5s"`
}

// LocalStoreConfig describes the on-terminal cache used while the remote is unreachable.
type LocalStoreConfig struct {
	Path        string        `envconfig:"COUNTERPOS_LOCAL_DB_PATH" default:"data/counterpos-cache.db"`
	BusyTimeout time.Duration `envconfig:"COUNTERPOS_LOCAL_DB_BUSY_TIMEOUT" default:"5s"`
}

// RedisConfig is optional. Without an address view invalidation stays in process.
type RedisConfig struct {
	URL          string        `envconfig:"COUNTERPOS_REDIS_URL"`
	Address      string        `envconfig:"COUNTERPOS_REDIS_ADDR"`
	Password     string        `envconfig:"COUNTERPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"COUNTERPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COUNTERPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COUNTERPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COUNTERPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COUNTERPOS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"COUNTERPOS_REDIS_WRITE_TIMEOUT" default:"3s"`
	Channel      string        `envconfig:"COUNTERPOS_REDIS_CHANNEL" default:"counterpos:views"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type SyncConfig struct {
	ProbeInterval time.Duration `envconfig:"COUNTERPOS_SYNC_PROBE_INTERVAL" default:"10s"`
	ProbeTimeout  time.Duration `envconfig:"COUNTERPOS_SYNC_PROBE_TIMEOUT" default:"3s"`
	// RemoteTimeout bounds every transaction against the system of record
	RemoteTimeout time.Duration `envconfig:"COUNTERPOS_SYNC_REMOTE_TIMEOUT" default:"5s"`
	BatchSize     int           `envconfig:"COUNTERPOS_SYNC_BATCH_SIZE" default:"200"`
	PullBatchSize int           `envconfig:"COUNTERPOS_SYNC_PULL_BATCH_SIZE" default:"500"`
}

type OrdersConfig struct {
	IDPrefix        string `envconfig:"COUNTERPOS_ORDER_ID_PREFIX" default:"ORD"`
	OfflineIDPrefix string `envconfig:"COUNTERPOS_ORDER_OFFLINE_ID_PREFIX" default:"OFL"`
}

func (o OrdersConfig) validate() error {
	if strings.TrimSpace(o.IDPrefix) == "" || strings.TrimSpace(o.OfflineIDPrefix) == "" {
		return fmt.Errorf("%s and %s must not be empty", EnvOrderIDPrefix, EnvOrderOfflineIDPrefix)
	}
	if strings.EqualFold(o.IDPrefix, o.OfflineIDPrefix) {
		return fmt.Errorf("%s must differ from %s", EnvOrderOfflineIDPrefix, EnvOrderIDPrefix)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COUNTERPOS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COUNTERPOS_AUTO_MIGRATE" default:"false"`
	OrderPurge  bool `envconfig:"COUNTERPOS_FEATURE_ORDER_PURGE" default:"false"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"COUNTERPOS_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"COUNTERPOS_METRICS_PATH" default:"/metrics"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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

	q := u.Query()
	if db.LegacySSLMode != "" {
		q.Set("sslmode", db.LegacySSLMode)
	}
	if db.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(db.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()

	db.DSN = u.String()
	return nil
}
