// Package api - HTTP surface of the secret vault
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/alwitt/goutils"
	"github.com/alwitt/secretshare/auth"
	"github.com/alwitt/secretshare/db"
	"github.com/alwitt/secretshare/vault"
	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateSecretRequest body of a create request
type CreateSecretRequest struct {
	Secret        string  `json:"secret"`
	ExpiresInDays int     `json:"expiresInDays"`
	Password      *string `json:"password,omitempty"`
	MaxViews      *int    `json:"maxViews,omitempty"`
	Email         *string `json:"email,omitempty"`
}

// CreateSecretResponse response to a create request
type CreateSecretResponse struct {
	ShareID string `json:"shareId"`
}

// UnlockSecretRequest body of an unlock request
type UnlockSecretRequest struct {
	Password  *string `json:"password,omitempty"`
	TwoFACode *string `json:"twoFACode,omitempty"`
}

// UnlockSecretResponse the revealed secret
type UnlockSecretResponse struct {
	Secret string `json:"secret"`
}

// RequireOTPResponse a one-time code must be presented
type RequireOTPResponse struct {
	Require2FA       bool `json:"require2FA"`
	PasswordVerified bool `json:"passwordVerified"`
	CodeSent         bool `json:"codeSent"`
}

// ErrorResponse error message
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandlerParams handler settings
type HandlerParams struct {
	// MaxBodyBytes largest accepted request body
	MaxBodyBytes int64
	// OTPLength number of digits in a one-time code
	OTPLength int
}

// Handler REST handlers of the vault
type Handler struct {
	goutils.Component
	vault       vault.Vault
	params      HandlerParams
	codePattern *regexp.Regexp
}

/*
NewHandler define the vault REST handlers

	@param secretVault vault.Vault - the vault
	@param params HandlerParams - handler settings
	@returns handler
*/
func NewHandler(secretVault vault.Vault, params HandlerParams) *Handler {
	return &Handler{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "api", "component": "vault-handler"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		vault:       secretVault,
		params:      params,
		codePattern: regexp.MustCompile(fmt.Sprintf("^[0-9]{%d}$", params.OTPLength)),
	}
}

// Health liveness probe
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateSecret handle POST /api/secret
func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSecretRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.error(w, http.StatusBadRequest, err.Error())
		return
	}

	shareID, err := h.vault.CreateSecret(ctx, vault.CreateRequest{
		Secret:        req.Secret,
		ExpiresInDays: req.ExpiresInDays,
		Password:      req.Password,
		MaxViews:      req.MaxViews,
		Email:         req.Email,
	}, nil)
	if err != nil {
		h.handleVaultError(w, r, err)
		return
	}

	h.json(w, http.StatusCreated, CreateSecretResponse{ShareID: shareID})
}

// UnlockSecret handle POST /api/secret/{id}/unlock
func (h *Handler) UnlockSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shareID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(shareID); err != nil {
		h.error(w, http.StatusNotFound, "secret not found")
		return
	}

	var req UnlockSecretRequest
	if err := h.decode(w, r, &req, true); err != nil {
		h.error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password != nil && *req.Password == "" {
		h.error(w, http.StatusBadRequest, "password must not be empty")
		return
	}
	if req.TwoFACode != nil && !h.codePattern.MatchString(*req.TwoFACode) {
		h.error(
			w,
			http.StatusBadRequest,
			fmt.Sprintf("twoFACode must be %d digits", h.params.OTPLength),
		)
		return
	}

	result, err := h.vault.UnlockSecret(
		ctx, shareID, auth.Credentials{Password: req.Password, OTPCode: req.TwoFACode},
	)
	if err != nil {
		h.handleVaultError(w, r, err)
		return
	}

	switch outcome := result.(type) {
	case vault.Unlocked:
		h.json(w, http.StatusOK, UnlockSecretResponse{Secret: string(outcome.Plaintext)})
	case vault.RequireOtp:
		h.json(w, http.StatusUnauthorized, RequireOTPResponse{
			Require2FA:       true,
			PasswordVerified: outcome.PasswordVerified,
			CodeSent:         outcome.CodeIssued,
		})
	case vault.Unauthorized:
		h.error(w, http.StatusUnauthorized, "password required or incorrect")
	case vault.Gone:
		h.error(w, http.StatusGone, "secret is no longer available")
	case vault.NotFound:
		h.error(w, http.StatusNotFound, "secret not found")
	default:
		log.WithFields(h.GetLogTagsForContext(r.Context())).Errorf("Unhandled unlock result %T", result)
		h.error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// decode parse a JSON request body. An empty body is accepted when allowEmpty is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target interface{}, allowEmpty bool) error {
	body := http.MaxBytesReader(w, r.Body, h.params.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid request body")
	}
	return nil
}

// handleVaultError map a vault error to a response
func (h *Handler) handleVaultError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vault.ErrValidation):
		h.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrStoreContention):
		w.Header().Set("Retry-After", "1")
		h.error(w, http.StatusServiceUnavailable, "secret is busy, retry later")
	default:
		log.WithError(err).WithFields(h.GetLogTagsForContext(r.Context())).Error("Request failed")
		h.error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (h *Handler) json(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).WithFields(h.LogTags).Error("Failed to write response")
	}
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}
