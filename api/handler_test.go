package api_test

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

	"github.com/alwitt/goutils"
	"github.com/alwitt/secretshare/api"
	"github.com/alwitt/secretshare/auth"
	"github.com/alwitt/secretshare/db"
	mockvault "github.com/alwitt/secretshare/mocks/vault"
	"github.com/alwitt/secretshare/quota"
	"github.com/alwitt/secretshare/vault"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestRouter(secretVault vault.Vault) http.Handler {
	return api.NewRouter(
		api.NewHandler(secretVault, api.HandlerParams{MaxBodyBytes: 4096, OTPLength: 6}),
		api.RouterParams{
			RequestTimeout: time.Second * 10,
			MetricsPath:    "/metrics",
			MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("metrics"))
			}),
		},
	)
}

func doRequest(router http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, target interface{}) {
	assert.Nil(t, json.Unmarshal(resp.Body.Bytes(), target))
}

func TestHandlerHealthAndMetrics(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	router := newTestRouter(mockvault.NewVault(t))

	resp := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(http.StatusOK, resp.Code)
	assert.NotEmpty(resp.Header().Get(api.RequestIDHeader))

	resp = doRequest(router, http.MethodGet, "/metrics", "")
	assert.Equal(http.StatusOK, resp.Code)
	assert.Equal("metrics", resp.Body.String())

	// Caller supplied request ID is echoed
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(api.RequestIDHeader, "ut-request")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal("ut-request", rec.Header().Get(api.RequestIDHeader))
}

func TestHandlerCreateSecret(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	mockVault := mockvault.NewVault(t)
	router := newTestRouter(mockVault)

	// Case 0: success
	{
		shareID := uuid.NewString()
		password := "pw"
		maxViews := 3
		mockVault.On("CreateSecret", mock.Anything, vault.CreateRequest{
			Secret: "hello", ExpiresInDays: 2, Password: &password, MaxViews: &maxViews,
		}, nil).Return(shareID, nil).Once()

		resp := doRequest(
			router,
			http.MethodPost,
			"/api/secret",
			`{"secret":"hello","expiresInDays":2,"password":"pw","maxViews":3}`,
		)
		assert.Equal(http.StatusCreated, resp.Code)
		assert.Equal("no-store", resp.Header().Get("Cache-Control"))
		var body api.CreateSecretResponse
		decodeBody(t, resp, &body)
		assert.Equal(shareID, body.ShareID)
	}

	// Case 1: validation failure
	{
		mockVault.On("CreateSecret", mock.Anything, mock.Anything, nil).
			Return("", fmt.Errorf("expiresInDays 31 exceeds 30 [%w]", vault.ErrValidation)).Once()

		resp := doRequest(router, http.MethodPost, "/api/secret", `{"secret":"x","expiresInDays":31}`)
		assert.Equal(http.StatusBadRequest, resp.Code)
		var body api.ErrorResponse
		decodeBody(t, resp, &body)
		assert.Contains(body.Error, "expiresInDays")
	}

	// Case 2: internal failure does not leak details
	{
		mockVault.On("CreateSecret", mock.Anything, mock.Anything, nil).
			Return("", fmt.Errorf("disk on fire")).Once()

		resp := doRequest(router, http.MethodPost, "/api/secret", `{"secret":"x","expiresInDays":1}`)
		assert.Equal(http.StatusInternalServerError, resp.Code)
		assert.NotContains(resp.Body.String(), "disk on fire")
	}

	// Case 3: malformed bodies never reach the vault
	{
		resp := doRequest(router, http.MethodPost, "/api/secret", `{"secret":`)
		assert.Equal(http.StatusBadRequest, resp.Code)

		resp = doRequest(router, http.MethodPost, "/api/secret", `{"secret":"x","expiresInDays":"one"}`)
		assert.Equal(http.StatusBadRequest, resp.Code)

		resp = doRequest(router, http.MethodPost, "/api/secret", "")
		assert.Equal(http.StatusBadRequest, resp.Code)

		huge := fmt.Sprintf(`{"secret":"%s","expiresInDays":1}`, strings.Repeat("x", 8192))
		resp = doRequest(router, http.MethodPost, "/api/secret", huge)
		assert.Equal(http.StatusBadRequest, resp.Code)
	}

	// Case 4: wrong content type
	{
		req := httptest.NewRequest(
			http.MethodPost, "/api/secret", bytes.NewBufferString(`{"secret":"x","expiresInDays":1}`),
		)
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(http.StatusUnsupportedMediaType, rec.Code)
	}
}

func TestHandlerUnlockSecret(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	mockVault := mockvault.NewVault(t)
	router := newTestRouter(mockVault)

	shareID := uuid.NewString()
	unlockPath := fmt.Sprintf("/api/secret/%s/unlock", shareID)

	type testCase struct {
		result     vault.UnlockResult
		err        error
		statusCode int
	}

	for idx, oneCase := range []testCase{
		{result: vault.Unlocked{Plaintext: []byte("hello")}, statusCode: http.StatusOK},
		{result: vault.RequireOtp{PasswordVerified: true, CodeIssued: true}, statusCode: http.StatusUnauthorized},
		{result: vault.Unauthorized{}, statusCode: http.StatusUnauthorized},
		{result: vault.Gone{Reason: quota.Expired}, statusCode: http.StatusGone},
		{result: vault.NotFound{}, statusCode: http.StatusNotFound},
		{err: fmt.Errorf("lease timeout [%w]", db.ErrStoreContention), statusCode: http.StatusServiceUnavailable},
		{err: fmt.Errorf("corrupted"), statusCode: http.StatusInternalServerError},
	} {
		mockVault.On("UnlockSecret", mock.Anything, shareID, auth.Credentials{}).
			Return(oneCase.result, oneCase.err).Once()

		resp := doRequest(router, http.MethodPost, unlockPath, "")
		assert.Equal(oneCase.statusCode, resp.Code, "case %d", idx)

		switch idx {
		case 0:
			var body api.UnlockSecretResponse
			decodeBody(t, resp, &body)
			assert.Equal("hello", body.Secret)
		case 1:
			var body api.RequireOTPResponse
			decodeBody(t, resp, &body)
			assert.True(body.Require2FA)
			assert.True(body.PasswordVerified)
			assert.True(body.CodeSent)
		case 2:
			var body map[string]interface{}
			decodeBody(t, resp, &body)
			_, ok := body["require2FA"]
			assert.False(ok)
		case 5:
			assert.Equal("1", resp.Header().Get("Retry-After"))
		}
	}

	// Credentials are passed through
	{
		password := "pw"
		code := "012345"
		mockVault.On(
			"UnlockSecret", mock.Anything, shareID, auth.Credentials{Password: &password, OTPCode: &code},
		).Return(vault.Unlocked{Plaintext: []byte("x")}, nil).Once()

		resp := doRequest(router, http.MethodPost, unlockPath, `{"password":"pw","twoFACode":"012345"}`)
		assert.Equal(http.StatusOK, resp.Code)
	}

	// Rejected before reaching the vault
	{
		resp := doRequest(router, http.MethodPost, "/api/secret/not-a-uuid/unlock", "")
		assert.Equal(http.StatusNotFound, resp.Code)

		for _, body := range []string{
			`{"twoFACode":"12345"}`,
			`{"twoFACode":"1234567"}`,
			`{"twoFACode":"12a456"}`,
			`{"password":""}`,
			`{"password":`,
		} {
			resp := doRequest(router, http.MethodPost, unlockPath, body)
			assert.Equal(http.StatusBadRequest, resp.Code, body)
		}

		resp = doRequest(router, http.MethodGet, unlockPath, "")
		assert.Equal(http.StatusMethodNotAllowed, resp.Code)
	}
}

func TestHandlerRequestContext(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	mockVault := mockvault.NewVault(t)
	router := newTestRouter(mockVault)

	component := goutils.Component{
		LogTags: log.Fields{"module": "ut", "component": "ut"},
		LogTagModifiers: []goutils.LogMetadataModifier{
			goutils.ModifyLogMetadataByRestRequestParam,
		},
	}

	shareID := uuid.NewString()
	var callCtx context.Context
	mockVault.On("UnlockSecret", mock.Anything, shareID, auth.Credentials{}).
		Run(func(args mock.Arguments) {
			callCtx = args.Get(0).(context.Context)
		}).
		Return(vault.NotFound{}, nil).Once()

	req := httptest.NewRequest(
		http.MethodPost, fmt.Sprintf("/api/secret/%s/unlock", shareID), nil,
	)
	req.Header.Set(api.RequestIDHeader, "ut-request-ctx")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(http.StatusNotFound, resp.Code)

	// Components called by the handler log the request ID
	assert.NotNil(callCtx)
	tags := component.GetLogTagsForContext(callCtx)
	assert.Equal("ut-request-ctx", tags["request_id"])
	assert.Equal(http.MethodPost, tags["request_method"])

	// The share ID never reaches the logged URI
	uri, ok := tags["request_uri"].(string)
	assert.True(ok)
	assert.NotContains(uri, shareID)
	assert.Contains(uri, "/api/secret/{id}/unlock")
}
