// Package secretshare - share secrets through expiring, view limited links
package secretshare

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/alwitt/secretshare/api"
	"github.com/alwitt/secretshare/config"
	"github.com/alwitt/secretshare/db"
	"github.com/alwitt/secretshare/encryption"
	"github.com/alwitt/secretshare/metrics"
	"github.com/alwitt/secretshare/notify"
	"github.com/alwitt/secretshare/vault"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application a fully wired secret sharing service
type Application struct {
	// Persistence persistence layer client
	Persistence db.Client
	// Vault the secret vault
	Vault vault.Vault
	// Router HTTP router
	Router http.Handler

	notifier    *notify.AsyncNotifier
	redisClient *redis.Client
}

/*
GetDialector define the GORM dialector selected by the store configuration

	@param cfg config.StoreConfig - store configuration
	@returns dialector
*/
func GetDialector(cfg config.StoreConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return db.GetSqliteDialector(cfg.SqliteFile, cfg.BusyTimeout), nil
	case "postgres":
		return db.GetPostgresDialector(cfg.PostgresDSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", cfg.Driver)
	}
}

/*
GetSQLLogLevel convert a configured SQL log level

	@param level string - one of silent, error, warn, info
	@returns GORM log level
*/
func GetSQLLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Error
	}
}

/*
NewPersistence define the persistence layer client

	@param ctx context.Context - execution context
	@param cfg config.StoreConfig - store configuration
	@returns client, and the redis client backing the leases if enabled
*/
func NewPersistence(ctx context.Context, cfg config.StoreConfig) (db.Client, *redis.Client, error) {
	dialector, err := GetDialector(cfg)
	if err != nil {
		return nil, nil, err
	}

	params := db.ConnectionParams{
		Dialector:   dialector,
		LogLevel:    GetSQLLogLevel(cfg.SQLLogLevel),
		LockTimeout: cfg.LockTimeout,
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
		params.Leases, err = db.NewRedisLeaseProvider(ctx, redisClient, db.RedisLeaseParams{
			KeyPrefix: cfg.Redis.KeyPrefix, TTL: cfg.Redis.LeaseTTL,
		})
		if err != nil {
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("failed to prepare redis leases [%w]", err)
		}
	}

	persistence, err := db.NewConnectionWithParams(params)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}
	return persistence, redisClient, nil
}

/*
NewNotifier define the one-time code notifier selected by the configuration

	@param cfg config.NotifyConfig - notifier configuration
	@returns notifier
*/
func NewNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	switch cfg.Mode {
	case "smtp":
		return notify.NewSMTPNotifier(cfg.SMTP)
	case "console":
		return notify.NewConsoleNotifier(), nil
	default:
		return nil, fmt.Errorf("unsupported notifier mode '%s'", cfg.Mode)
	}
}

/*
NewApplication wire the secret sharing service from its configuration

The database schema must already exist; see DefineTables in the db package.

	@param ctx context.Context - execution context
	@param cfg config.Config - application configuration
	@param notifier notify.Notifier - optional notifier override
	@returns application
*/
func NewApplication(
	ctx context.Context, cfg config.Config, notifier notify.Notifier,
) (*Application, error) {
	persistence, redisClient, err := NewPersistence(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	app := &Application{Persistence: persistence, redisClient: redisClient}
	if err := app.wire(ctx, cfg, notifier); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *Application) wire(ctx context.Context, cfg config.Config, notifier notify.Notifier) error {
	// Prepare cryptography engine
	cryptoEngine, err := encryption.NewCryptographyEngine(ctx, encryption.CryptographyEngineParams{
		ServerSalt:    []byte(cfg.Crypto.ServerSalt),
		KDFIterations: cfg.Crypto.KDFIterations,
		Verifier: encryption.VerifierParams{
			Time:      cfg.Crypto.Verifier.Time,
			MemoryKiB: cfg.Crypto.Verifier.MemoryKiB,
			Threads:   cfg.Crypto.Verifier.Threads,
			SaltLen:   16,
			KeyLen:    32,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialized cryptography engine [%w]", err)
	}

	if notifier == nil {
		if notifier, err = NewNotifier(cfg.Notify); err != nil {
			return fmt.Errorf("failed to initialized notifier [%w]", err)
		}
	}
	a.notifier = notify.NewAsync(notifier, cfg.Notify.SendTimeout)

	var collector *metrics.Collector
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		registry := metrics.NewRegistry()
		if collector, err = metrics.NewCollector(registry); err != nil {
			return fmt.Errorf("failed to initialized metrics [%w]", err)
		}
		metricsHandler = metrics.Handler(registry)
	}

	vaultParams := vault.DefaultParams()
	vaultParams.MaxExpiryDays = cfg.Vault.MaxExpiryDays
	vaultParams.DefaultMaxViews = cfg.Vault.DefaultMaxViews
	vaultParams.OTP.OTPValidity = cfg.Vault.OTPValidity
	vaultParams.OTP.OTPLength = cfg.Vault.OTPLength

	a.Vault, err = vault.NewVault(ctx, a.Persistence, cryptoEngine, a.notifier, collector, vaultParams)
	if err != nil {
		return fmt.Errorf("failed to initialized vault [%w]", err)
	}

	a.Router = api.NewRouter(
		api.NewHandler(a.Vault, api.HandlerParams{
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes, OTPLength: cfg.Vault.OTPLength,
		}),
		api.RouterParams{
			RequestTimeout: cfg.HTTP.RequestTimeout,
			MetricsPath:    cfg.Metrics.Path,
			MetricsHandler: metricsHandler,
		},
	)

	return nil
}

// Close wait for pending deliveries and release connections
func (a *Application) Close() error {
	if a.notifier != nil {
		a.notifier.Wait()
	}
	var closeErr error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close redis client [%w]", err)
		}
	}
	if a.Persistence != nil {
		if err := a.Persistence.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("failed to close persistence client [%w]", err)
		}
	}
	return closeErr
}
