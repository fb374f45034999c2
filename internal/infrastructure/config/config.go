package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	App           AppConfig           `mapstructure:"app"`
	Store         StoreConfig         `mapstructure:"store"`
	MercadoPago   MercadoPagoConfig   `mapstructure:"mercadopago"`
	Reconcile     ReconcileConfig     `mapstructure:"reconcile"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	SessionCookie string `mapstructure:"session_cookie"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// AppConfig describes how the storefront is reached from the outside. BaseURL
// is used to build the processor back URLs and the notification URL.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
}

type StoreConfig struct {
	HomeURL         string `mapstructure:"home_url"`
	StoreURL        string `mapstructure:"store_url"`
	SalesTaxPercent string `mapstructure:"sales_tax_percent"`
}

// SalesTax returns the configured tax percentage.
func (c StoreConfig) SalesTax() (decimal.Decimal, error) {
	if strings.TrimSpace(c.SalesTaxPercent) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(c.SalesTaxPercent))
}

type MercadoPagoConfig struct {
	AccessToken             string        `mapstructure:"access_token"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	Sandbox                 bool          `mapstructure:"sandbox"`
	Mock                    bool          `mapstructure:"mock"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

type ReconcileConfig struct {
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	LockWait         time.Duration `mapstructure:"lock_wait"`
	MaxCASAttempts   int           `mapstructure:"max_cas_attempts"`
	ApproveCancelled bool          `mapstructure:"approve_cancelled"`
	KeepTerminal     bool          `mapstructure:"keep_terminal"`
}

type WebhookConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

type WorkerConfig struct {
	BatchSize           int           `mapstructure:"batch_size"`
	OutboxPollInterval  time.Duration `mapstructure:"outbox_poll_interval"`
	EventsStream        string        `mapstructure:"events_stream"`
	NotificationsStream string        `mapstructure:"notifications_stream"`
	StreamMaxLen        int64         `mapstructure:"stream_max_len"`
	PublishedRetention  time.Duration `mapstructure:"published_retention"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// CREDITSHOP_MERCADOPAGO_ACCESS_TOKEN -> mercadopago.access_token
	v.SetEnvPrefix("CREDITSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/creditshop")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once. An http base URL is accepted
// here so local setups can boot; checkout refuses to start until it is https.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.App.BaseURL == "" {
		errs = append(errs, fmt.Errorf("app.base_url is required"))
	} else if u, err := url.Parse(c.App.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("app.base_url must be an absolute URL, got %q", c.App.BaseURL))
	}
	if tax, err := c.Store.SalesTax(); err != nil {
		errs = append(errs, fmt.Errorf("store.sales_tax_percent must be a decimal number: %w", err))
	} else if tax.IsNegative() {
		errs = append(errs, fmt.Errorf("store.sales_tax_percent cannot be negative"))
	}
	if !c.MercadoPago.Mock && c.MercadoPago.AccessToken == "" {
		errs = append(errs, fmt.Errorf("mercadopago.access_token is required unless mercadopago.mock is set"))
	}
	if c.MercadoPago.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("mercadopago.timeout must be positive"))
	}
	if c.Reconcile.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("reconcile.lock_ttl must be positive"))
	}
	if c.Reconcile.MaxCASAttempts <= 0 {
		errs = append(errs, fmt.Errorf("reconcile.max_cas_attempts must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if c.MercadoPago.Mock {
			errs = append(errs, fmt.Errorf("mercadopago.mock cannot be enabled in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "creditshop")
	v.SetDefault("database.database", "creditshop")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Storefront defaults
	v.SetDefault("app.name", "creditshop")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("store.home_url", "/home")
	v.SetDefault("store.store_url", "/store")
	v.SetDefault("store.sales_tax_percent", "0")

	// Processor defaults
	v.SetDefault("mercadopago.timeout", "10s")
	v.SetDefault("mercadopago.sandbox", false)
	v.SetDefault("mercadopago.mock", false)
	v.SetDefault("mercadopago.circuit_breaker_threshold", 5)
	v.SetDefault("mercadopago.circuit_breaker_timeout", "30s")

	// Reconciliation defaults
	v.SetDefault("reconcile.lock_ttl", "15s")
	v.SetDefault("reconcile.lock_wait", "3s")
	v.SetDefault("reconcile.max_cas_attempts", 3)
	v.SetDefault("reconcile.approve_cancelled", false)
	v.SetDefault("reconcile.keep_terminal", false)

	v.SetDefault("webhook.rate_limit", 120)
	v.SetDefault("webhook.rate_window", "1m")

	// Worker defaults
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.events_stream", "payments:events")
	v.SetDefault("worker.notifications_stream", "notifications:outbound")
	v.SetDefault("worker.stream_max_len", 100000)
	v.SetDefault("worker.published_retention", "168h")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	v.SetDefault("auth.session_cookie", "session")

	v.SetDefault("instance_id", "creditshop-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL is the URL form golang-migrate expects.
func (c *DatabaseConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UsesHTTPS reports whether the public base URL is served over TLS.
func (c AppConfig) UsesHTTPS() bool {
	u, err := url.Parse(c.BaseURL)
	return err == nil && u.Scheme == "https"
}
