package config_test

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alwitt/secretshare/config"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func writeTestConfig(t *testing.T, content string) string {
	fileName := fmt.Sprintf("/tmp/secretshare_ut_%s.yaml", ulid.Make().String())
	assert.Nil(t, os.WriteFile(fileName, []byte(content), 0600))
	t.Cleanup(func() {
		_ = os.Remove(fileName)
	})
	return fileName
}

func TestConfigDefaults(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	// Case 0: the salt has no default
	{
		_, err := config.Load("")
		assert.Error(err)
	}

	// Case 1: salt from the environment
	t.Setenv("SECRETSHARE_CRYPTO_SERVER_SALT", "0123456789abcdef0123456789abcdef")
	cfg, err := config.Load("")
	assert.Nil(err)
	assert.Equal("0123456789abcdef0123456789abcdef", cfg.Crypto.ServerSalt)
	assert.Equal(100000, cfg.Crypto.KDFIterations)
	assert.Equal(30, cfg.Vault.MaxExpiryDays)
	assert.Equal(1, cfg.Vault.DefaultMaxViews)
	assert.Equal(time.Minute*10, cfg.Vault.OTPValidity)
	assert.Equal(6, cfg.Vault.OTPLength)
	assert.Equal("sqlite", cfg.Store.Driver)
	assert.Equal(time.Second*5, cfg.Store.LockTimeout)
	assert.Equal("console", cfg.Notify.Mode)
	assert.True(cfg.Sweeper.Enabled)
	assert.Equal("/metrics", cfg.Metrics.Path)
}

func TestConfigFileAndEnv(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	configFile := writeTestConfig(t, `
log:
  level: debug
  json: true
http:
  listen_on: 127.0.0.1:9090
store:
  driver: postgres
  postgres_dsn: host=localhost user=secretshare dbname=secretshare
  lock_timeout: 2s
  redis:
    enabled: true
    addr: localhost:6379
crypto:
  server_salt: fedcba9876543210fedcba9876543210
  kdf_iterations: 200000
vault:
  default_max_views: 0
notify:
  mode: smtp
  smtp:
    host: mail.example.com
    port: 2525
    from: noreply@example.com
`)

	// Case 0: file values
	cfg, err := config.Load(configFile)
	assert.Nil(err)
	assert.Equal("debug", cfg.Log.Level)
	assert.True(cfg.Log.JSON)
	assert.Equal("127.0.0.1:9090", cfg.HTTP.ListenOn)
	assert.Equal("postgres", cfg.Store.Driver)
	assert.Equal(time.Second*2, cfg.Store.LockTimeout)
	assert.True(cfg.Store.Redis.Enabled)
	assert.Equal("localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(200000, cfg.Crypto.KDFIterations)
	assert.Equal(0, cfg.Vault.DefaultMaxViews)
	assert.Equal("smtp", cfg.Notify.Mode)
	assert.Equal("mail.example.com", cfg.Notify.SMTP.Host)
	assert.Equal(2525, cfg.Notify.SMTP.Port)

	// Case 1: environment wins over the file
	t.Setenv("SECRETSHARE_STORE_LOCK_TIMEOUT", "750ms")
	t.Setenv("SECRETSHARE_VAULT_MAX_EXPIRY_DAYS", "7")
	cfg, err = config.Load(configFile)
	assert.Nil(err)
	assert.Equal(time.Millisecond*750, cfg.Store.LockTimeout)
	assert.Equal(7, cfg.Vault.MaxExpiryDays)
}

func TestConfigInvalid(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	for idx, content := range []string{
		// Salt too short
		"crypto:\n  server_salt: short\n",
		// Too few iterations
		"crypto:\n  server_salt: 0123456789abcdef0123456789abcdef\n  kdf_iterations: 10\n",
		// Unknown driver
		"crypto:\n  server_salt: 0123456789abcdef0123456789abcdef\nstore:\n  driver: mysql\n",
		// Postgres without DSN
		"crypto:\n  server_salt: 0123456789abcdef0123456789abcdef\nstore:\n  driver: postgres\n",
		// Redis without address
		"crypto:\n  server_salt: 0123456789abcdef0123456789abcdef\nstore:\n  redis:\n    enabled: true\n",
		// SMTP without relay
		"crypto:\n  server_salt: 0123456789abcdef0123456789abcdef\nnotify:\n  mode: smtp\n",
		// Bad code length
		"crypto:\n  server_salt: 0123456789abcdef0123456789abcdef\nvault:\n  otp_length: 12\n",
		// Expiry limit above 30 days
		"crypto:\n  server_salt: 0123456789abcdef0123456789abcdef\nvault:\n  max_expiry_days: 31\n",
	} {
		_, err := config.Load(writeTestConfig(t, content))
		assert.Error(err, "config %d", idx)
	}

	// Missing file
	_, err := config.Load("/tmp/secretshare_ut_does_not_exist.yaml")
	assert.Error(err)

	// Expiry limit raised through the environment
	t.Setenv("SECRETSHARE_CRYPTO_SERVER_SALT", "0123456789abcdef0123456789abcdef")
	t.Setenv("SECRETSHARE_VAULT_MAX_EXPIRY_DAYS", "365")
	_, err = config.Load("")
	assert.Error(err)
}
