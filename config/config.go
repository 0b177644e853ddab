// Package config - application configuration
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alwitt/secretshare/notify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefix of environment variable overrides. Nested keys join with `_`, so
// `store.lock_timeout` is read from SECRETSHARE_STORE_LOCK_TIMEOUT.
const EnvPrefix = "SECRETSHARE"

// LogConfig logging settings
type LogConfig struct {
	// Level log level
	Level string `mapstructure:"level" json:"level" validate:"required,oneof=debug info warn error"`
	// JSON emit JSON logs
	JSON bool `mapstructure:"json" json:"json"`
}

// HTTPConfig HTTP server settings
type HTTPConfig struct {
	// ListenOn server listen address
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,hostname_port"`
	// ReadTimeout request read timeout
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout" validate:"gte=1s"`
	// WriteTimeout response write timeout
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" validate:"gte=1s"`
	// IdleTimeout keep-alive idle timeout
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" validate:"gte=1s"`
	// RequestTimeout per request processing timeout
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" validate:"gte=1s"`
	// MaxBodyBytes largest accepted request body
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" json:"max_body_bytes" validate:"gte=1024"`
}

// RedisConfig redis lease settings
type RedisConfig struct {
	// Enabled use redis for per-secret leases instead of in-process locks
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Addr redis address
	Addr string `mapstructure:"addr" json:"addr" validate:"required_if=Enabled true"`
	// Password redis password
	Password string `mapstructure:"password" json:"-"`
	// DB redis database
	DB int `mapstructure:"db" json:"db" validate:"gte=0"`
	// KeyPrefix lease key prefix
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix" validate:"required"`
	// LeaseTTL lease expiry, bounding how long a crashed holder blocks a secret
	LeaseTTL time.Duration `mapstructure:"lease_ttl" json:"lease_ttl" validate:"gte=1s"`
}

// StoreConfig persistence settings
type StoreConfig struct {
	// Driver database driver
	Driver string `mapstructure:"driver" json:"driver" validate:"required,oneof=sqlite postgres"`
	// SqliteFile SQLite database file
	SqliteFile string `mapstructure:"sqlite_file" json:"sqlite_file" validate:"required_if=Driver sqlite"`
	// PostgresDSN PostgreSQL DSN
	PostgresDSN string `mapstructure:"postgres_dsn" json:"-" validate:"required_if=Driver postgres"`
	// BusyTimeout SQLite busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout" json:"busy_timeout" validate:"gte=0"`
	// LockTimeout how long an unlock waits for the secret's lock
	LockTimeout time.Duration `mapstructure:"lock_timeout" json:"lock_timeout" validate:"gte=10ms"`
	// SQLLogLevel gorm log level
	SQLLogLevel string `mapstructure:"sql_log_level" json:"sql_log_level" validate:"required,oneof=silent error warn info"`
	// Redis optional distributed leases
	Redis RedisConfig `mapstructure:"redis" json:"redis"`
}

// VerifierConfig argon2id settings
type VerifierConfig struct {
	Time      uint32 `mapstructure:"time" json:"time" validate:"gte=1"`
	MemoryKiB uint32 `mapstructure:"memory_kib" json:"memory_kib" validate:"gte=8"`
	Threads   uint8  `mapstructure:"threads" json:"threads" validate:"gte=1"`
}

// CryptoConfig key derivation settings
type CryptoConfig struct {
	// ServerSalt key derivation salt. Changing it makes every stored secret unreadable.
	ServerSalt string `mapstructure:"server_salt" json:"-" validate:"required,min=16"`
	// KDFIterations PBKDF2 iterations
	KDFIterations int `mapstructure:"kdf_iterations" json:"kdf_iterations" validate:"gte=100000"`
	// Verifier password and one-time code hashing
	Verifier VerifierConfig `mapstructure:"verifier" json:"verifier"`
}

// VaultConfig secret lifecycle settings
type VaultConfig struct {
	// MaxExpiryDays longest lifetime of a secret
	MaxExpiryDays int `mapstructure:"max_expiry_days" json:"max_expiry_days" validate:"gte=1,lte=30"`
	// DefaultMaxViews view quota when a request sets none. 0 means unlimited.
	DefaultMaxViews int `mapstructure:"default_max_views" json:"default_max_views" validate:"gte=0"`
	// OTPValidity one-time code validity
	OTPValidity time.Duration `mapstructure:"otp_validity" json:"otp_validity" validate:"gte=1s"`
	// OTPLength one-time code digits
	OTPLength int `mapstructure:"otp_length" json:"otp_length" validate:"gte=4,lte=9"`
}

// NotifyConfig one-time code delivery settings
type NotifyConfig struct {
	// Mode delivery mode
	Mode string `mapstructure:"mode" json:"mode" validate:"required,oneof=console smtp"`
	// SendTimeout bound on each delivery
	SendTimeout time.Duration `mapstructure:"send_timeout" json:"send_timeout" validate:"gte=1s"`
	// SMTP relay settings, used in smtp mode
	SMTP notify.SMTPParams `mapstructure:"smtp" json:"smtp" validate:"-"`
}

// SweeperConfig expired secret sweeper settings
type SweeperConfig struct {
	// Enabled run the sweeper inside the server
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Interval time between sweeps
	Interval time.Duration `mapstructure:"interval" json:"interval" validate:"gte=1s"`
}

// MetricsConfig metrics endpoint settings
type MetricsConfig struct {
	// Enabled expose metrics
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Path metrics endpoint path
	Path string `mapstructure:"path" json:"path" validate:"required,startswith=/"`
}

// Config application configuration
type Config struct {
	Log     LogConfig     `mapstructure:"log" json:"log"`
	HTTP    HTTPConfig    `mapstructure:"http" json:"http"`
	Store   StoreConfig   `mapstructure:"store" json:"store"`
	Crypto  CryptoConfig  `mapstructure:"crypto" json:"crypto"`
	Vault   VaultConfig   `mapstructure:"vault" json:"vault"`
	Notify  NotifyConfig  `mapstructure:"notify" json:"notify"`
	Sweeper SweeperConfig `mapstructure:"sweeper" json:"sweeper"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// setDefaults install the default of every key, which also makes every key
// overridable from the environment
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("http.listen_on", "0.0.0.0:8080")
	v.SetDefault("http.read_timeout", time.Second*15)
	v.SetDefault("http.write_timeout", time.Second*15)
	v.SetDefault("http.idle_timeout", time.Second*60)
	v.SetDefault("http.request_timeout", time.Second*10)
	v.SetDefault("http.max_body_bytes", 64*1024)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_file", "secretshare.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.busy_timeout", time.Second*5)
	v.SetDefault("store.lock_timeout", time.Second*5)
	v.SetDefault("store.sql_log_level", "error")
	v.SetDefault("store.redis.enabled", false)
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", "secretshare:lease:")
	v.SetDefault("store.redis.lease_ttl", time.Second*30)

	v.SetDefault("crypto.server_salt", "")
	v.SetDefault("crypto.kdf_iterations", 100000)
	v.SetDefault("crypto.verifier.time", 3)
	v.SetDefault("crypto.verifier.memory_kib", 64*1024)
	v.SetDefault("crypto.verifier.threads", 2)

	v.SetDefault("vault.max_expiry_days", 30)
	v.SetDefault("vault.default_max_views", 1)
	v.SetDefault("vault.otp_validity", time.Minute*10)
	v.SetDefault("vault.otp_length", 6)

	v.SetDefault("notify.mode", "console")
	v.SetDefault("notify.send_timeout", time.Second*30)
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", time.Minute*10)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

/*
Load read the configuration

Precedence, highest first: environment, config file, defaults.

	@param configFile string - optional YAML config file
	@returns validated configuration
*/
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s [%w]", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration [%w]", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate check the configuration
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(&c); err != nil {
		return fmt.Errorf("configuration is not valid [%w]", err)
	}
	if c.Notify.Mode == "smtp" {
		if err := validate.Struct(&c.Notify.SMTP); err != nil {
			return fmt.Errorf("SMTP configuration is not valid [%w]", err)
		}
	}
	return nil
}
