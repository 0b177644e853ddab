package secretshare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alwitt/secretshare/api"
	"github.com/alwitt/secretshare/config"
	"github.com/alwitt/secretshare/db"
	mocknotify "github.com/alwitt/secretshare/mocks/notify"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testConfig() config.Config {
	return config.Config{
		Log: config.LogConfig{Level: "debug"},
		HTTP: config.HTTPConfig{
			ListenOn:       "127.0.0.1:8080",
			ReadTimeout:    time.Second * 5,
			WriteTimeout:   time.Second * 5,
			IdleTimeout:    time.Second * 5,
			RequestTimeout: time.Second * 10,
			MaxBodyBytes:   64 * 1024,
		},
		Store: config.StoreConfig{
			Driver:      "sqlite",
			SqliteFile:  fmt.Sprintf("/tmp/secretshare_ut_%s.db", ulid.Make().String()),
			BusyTimeout: time.Second * 5,
			LockTimeout: time.Second * 5,
			SQLLogLevel: "error",
			Redis:       config.RedisConfig{KeyPrefix: "secretshare:lease:", LeaseTTL: time.Second * 30},
		},
		Crypto: config.CryptoConfig{
			ServerSalt:    "0123456789abcdef0123456789abcdef",
			KDFIterations: 100000,
			Verifier:      config.VerifierConfig{Time: 1, MemoryKiB: 8 * 1024, Threads: 1},
		},
		Vault: config.VaultConfig{
			MaxExpiryDays:   30,
			DefaultMaxViews: 1,
			OTPValidity:     time.Minute * 10,
			OTPLength:       6,
		},
		Notify:  config.NotifyConfig{Mode: "console", SendTimeout: time.Second * 5},
		Sweeper: config.SweeperConfig{Enabled: false, Interval: time.Minute},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestApplication(t *testing.T, notifier *mocknotify.Notifier) *Application {
	utCtx := context.Background()
	cfg := testConfig()
	assert.Nil(t, cfg.Validate())
	log.WithField("db", cfg.Store.SqliteFile).Debug("Test database")

	persistence, _, err := NewPersistence(utCtx, cfg.Store)
	assert.Nil(t, err)
	assert.Nil(t, persistence.RunSQLInTransaction(utCtx, db.DefineTables))
	assert.Nil(t, persistence.Close())

	app, err := NewApplication(utCtx, cfg, notifier)
	assert.Nil(t, err)
	t.Cleanup(func() {
		assert.Nil(t, app.Close())
	})
	return app
}

func doJSON(
	t *testing.T, router http.Handler, path string, body interface{}, target interface{},
) int {
	var payload bytes.Buffer
	if body != nil {
		assert.Nil(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if target != nil {
		assert.Nil(t, json.Unmarshal(resp.Body.Bytes(), target))
	}
	return resp.Code
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func TestApplicationWiring(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Case 0: unsupported selections
	{
		cfg := testConfig()
		cfg.Store.Driver = "mysql"
		_, err := GetDialector(cfg.Store)
		assert.Error(err)

		cfg.Notify.Mode = "pigeon"
		_, err = NewNotifier(cfg.Notify)
		assert.Error(err)
	}

	// Case 1: salt too short
	{
		cfg := testConfig()
		cfg.Crypto.ServerSalt = "short"
		_, err := NewApplication(utCtx, cfg, nil)
		assert.Error(err)
	}

	// Case 2: health and metrics
	{
		app := newTestApplication(t, mocknotify.NewNotifier(t))

		resp := httptest.NewRecorder()
		app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(http.StatusOK, resp.Code)

		resp = httptest.NewRecorder()
		app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusOK, resp.Code)
		assert.Contains(resp.Body.String(), "secretshare_")
	}

	// Case 3: close releases the database
	{
		app := newTestApplication(t, mocknotify.NewNotifier(t))
		assert.Nil(app.Close())
		err := app.Persistence.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				_, err := dbClient.GetSystemParamEntry(ctx)
				return err
			},
		)
		assert.Error(err)
	}
}

func TestApplicationShareFlow(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	mockNotifier := mocknotify.NewNotifier(t)
	app := newTestApplication(t, mockNotifier)

	// Case 0: invalid create
	{
		var errResp api.ErrorResponse
		status := doJSON(t, app.Router, "/api/secret", api.CreateSecretRequest{
			Secret: "hello", ExpiresInDays: 0,
		}, &errResp)
		assert.Equal(http.StatusBadRequest, status)
		assert.NotEmpty(errResp.Error)
	}

	// Case 1: two views, then the secret is gone
	{
		var created api.CreateSecretResponse
		status := doJSON(t, app.Router, "/api/secret", api.CreateSecretRequest{
			Secret: "hello", ExpiresInDays: 1, MaxViews: intPtr(2),
		}, &created)
		assert.Equal(http.StatusCreated, status)
		path := fmt.Sprintf("/api/secret/%s/unlock", created.ShareID)

		for itr := 0; itr < 2; itr++ {
			var unlocked api.UnlockSecretResponse
			status = doJSON(t, app.Router, path, nil, &unlocked)
			assert.Equal(http.StatusOK, status)
			assert.Equal("hello", unlocked.Secret)
		}

		status = doJSON(t, app.Router, path, nil, nil)
		assert.Equal(http.StatusNotFound, status)
	}

	// Case 2: password protected
	{
		var created api.CreateSecretResponse
		status := doJSON(t, app.Router, "/api/secret", api.CreateSecretRequest{
			Secret: "pw-secret", ExpiresInDays: 1, Password: strPtr("hunter2"),
		}, &created)
		assert.Equal(http.StatusCreated, status)
		path := fmt.Sprintf("/api/secret/%s/unlock", created.ShareID)

		status = doJSON(t, app.Router, path, api.UnlockSecretRequest{Password: strPtr("wrong")}, nil)
		assert.Equal(http.StatusUnauthorized, status)

		var unlocked api.UnlockSecretResponse
		status = doJSON(
			t, app.Router, path, api.UnlockSecretRequest{Password: strPtr("hunter2")}, &unlocked,
		)
		assert.Equal(http.StatusOK, status)
		assert.Equal("pw-secret", unlocked.Secret)
	}

	// Case 3: email one-time code
	{
		code := ""
		mockNotifier.On(
			"Send", mock.Anything, "a@b.com", mock.AnythingOfType("string"), mock.AnythingOfType("string"),
		).Run(func(args mock.Arguments) {
			body := args.String(3)
			idx := strings.Index(body, "code is: ")
			if idx >= 0 {
				code = body[idx+len("code is: ") : idx+len("code is: ")+6]
			}
		}).Return(nil).Once()

		var created api.CreateSecretResponse
		status := doJSON(t, app.Router, "/api/secret", api.CreateSecretRequest{
			Secret: "otp-secret", ExpiresInDays: 1, Email: strPtr("a@b.com"),
		}, &created)
		assert.Equal(http.StatusCreated, status)
		path := fmt.Sprintf("/api/secret/%s/unlock", created.ShareID)

		var challenge api.RequireOTPResponse
		status = doJSON(t, app.Router, path, nil, &challenge)
		assert.Equal(http.StatusUnauthorized, status)
		assert.True(challenge.Require2FA)
		assert.True(challenge.CodeSent)

		// Delivery is asynchronous
		app.notifier.Wait()
		assert.Len(code, 6)

		// Malformed code
		status = doJSON(t, app.Router, path, api.UnlockSecretRequest{TwoFACode: strPtr("12")}, nil)
		assert.Equal(http.StatusBadRequest, status)

		var unlocked api.UnlockSecretResponse
		status = doJSON(t, app.Router, path, api.UnlockSecretRequest{TwoFACode: &code}, &unlocked)
		assert.Equal(http.StatusOK, status)
		assert.Equal("otp-secret", unlocked.Secret)
	}

	// Case 4: unknown share
	{
		status := doJSON(t, app.Router, "/api/secret/not-a-uuid/unlock", nil, nil)
		assert.Equal(http.StatusNotFound, status)
	}
}
