package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	Inventory InventoryConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
	Cron      CronConfig
	Features  FeatureFlagsConfig
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
	Env          string `envconfig:"STOCKLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKLINE_DB_DSN"`
	Driver string `envconfig:"STOCKLINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOCKLINE_DB_HOST"`
	Port     int    `envconfig:"STOCKLINE_DB_PORT" default:"5432"`
	User     string `envconfig:"STOCKLINE_DB_USER"`
	Password string `envconfig:"STOCKLINE_DB_PASSWORD"`
	Name     string `envconfig:"STOCKLINE_DB_NAME"`
	SSLMode  string `envconfig:"STOCKLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKLINE_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// InventoryConfig carries warehouse policy knobs injected into the
// allocation and order services.
type InventoryConfig struct {
	MaxOrderItems    int           `envconfig:"STOCKLINE_MAX_ORDER_ITEMS" default:"20"`
	MinAlertQuantity int           `envconfig:"STOCKLINE_MIN_ALERT_QUANTITY" default:"5"`
	StockCacheTTL    time.Duration `envconfig:"STOCKLINE_STOCK_CACHE_TTL" default:"30s"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STOCKLINE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"STOCKLINE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	InventoryTopic        string `envconfig:"STOCKLINE_PUBSUB_INVENTORY_TOPIC" default:"sl-inventory-events"`
	OrdersTopic           string `envconfig:"STOCKLINE_PUBSUB_ORDERS_TOPIC" default:"sl-order-events"`
	InventorySubscription string `envconfig:"STOCKLINE_PUBSUB_INVENTORY_SUBSCRIPTION"`
	OrdersSubscription    string `envconfig:"STOCKLINE_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOCKLINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOCKLINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOCKLINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOCKLINE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"STOCKLINE_CRON_LOCK_TTL" default:"2h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOCKLINE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
