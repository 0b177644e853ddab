// Package encryption - data encryption processing engine
package encryption

import (
	"context"
	"errors"
	"fmt"
	"io"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"github.com/alwitt/goutils"
	"github.com/alwitt/secretshare/models"
	"github.com/apex/log"
	"github.com/awnumar/memguard"
	"github.com/go-playground/validator/v10"
)

// ErrAuthenticationFailure cipher text failed authentication, or is malformed
var ErrAuthenticationFailure = errors.New("cipher text authentication failed")

// EncryptedData encrypted data and the nonce used
type EncryptedData struct {
	// CipherText the cipher text followed by the authentication tag
	CipherText []byte
	// Nonce the encryption nonce
	Nonce []byte
}

/*
CryptographyEngine the system's cryptography engine. It is solely responsible for all
cryptographic operations in the system.

Each secret is encrypted under its own key, derived from the secret ID and the server salt.
The key is never stored; it is re-derived for every decryption and wiped right after.
*/
type CryptographyEngine interface {
	// ------------------------------------------------------------------------------------
	// Secret encryption

	/*
		SealSecret derive the key of a secret and encrypt its plain text

			@param ctx context.Context - execution context
			@param secretID string - the secret ID
			@param plainText []byte - the plain text to encrypt
			@return the cipher text
	*/
	SealSecret(ctx context.Context, secretID string, plainText []byte) (EncryptedData, error)

	/*
		OpenSecret derive the key of a secret and decrypt its cipher text

		Returns ErrAuthenticationFailure if the cipher text does not authenticate.

			@param ctx context.Context - execution context
			@param secretID string - the secret ID
			@param encrypted EncryptedData - the cipher text to decrypt
			@return the plain text
	*/
	OpenSecret(ctx context.Context, secretID string, encrypted EncryptedData) ([]byte, error)

	/*
		KDFParams describe the key derivation in use, including a fingerprint of the server salt

			@param ctx context.Context - execution context
			@return the KDF parameters
	*/
	KDFParams(ctx context.Context) (models.KDFParams, error)

	// ------------------------------------------------------------------------------------
	// Verifiers

	/*
		HashVerifier compute the slow salted hash of a password or one-time code

			@param ctx context.Context - execution context
			@param secret string - the value to hash
			@return encoded verifier
	*/
	HashVerifier(ctx context.Context, secret string) (string, error)

	/*
		CheckVerifier verify a candidate against an encoded verifier in constant time

			@param ctx context.Context - execution context
			@param encoded string - the encoded verifier
			@param candidate string - the candidate value
			@return whether the candidate matches
	*/
	CheckVerifier(ctx context.Context, encoded string, candidate string) (bool, error)

	// ------------------------------------------------------------------------------------
	// Randomness

	/*
		RandomDigits generate a uniformly random numeric string

			@param ctx context.Context - execution context
			@param length int - number of digits
			@return the digits
	*/
	RandomDigits(ctx context.Context, length int) (string, error)
}

// cryptoEngine implements CryptographyEngine
type cryptoEngine struct {
	goutils.Component

	validator *validator.Validate

	crypto cgoCrypto.Engine
	rng    io.Reader

	serverSalt    *memguard.Enclave
	kdfIterations int
	verifier      VerifierParams
}

// VerifierParams argon2id parameters for password and one-time code verifiers
type VerifierParams struct {
	// Time number of passes
	Time uint32 `validate:"gte=1"`
	// MemoryKiB memory cost in KiB
	MemoryKiB uint32 `validate:"gte=8"`
	// Threads degree of parallelism
	Threads uint8 `validate:"gte=1"`
	// SaltLen random salt length in bytes
	SaltLen uint32 `validate:"gte=16"`
	// KeyLen hash length in bytes
	KeyLen uint32 `validate:"gte=16"`
}

// DefaultVerifierParams default verifier hashing parameters
func DefaultVerifierParams() VerifierParams {
	return VerifierParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 2, SaltLen: 16, KeyLen: 32}
}

// CryptographyEngineParams cryptography engine init parameters
type CryptographyEngineParams struct {
	// ServerSalt process-wide key derivation salt
	ServerSalt []byte `validate:"required,min=16"`
	// KDFIterations key derivation iteration count
	KDFIterations int `validate:"gte=100000"`
	// Verifier password and one-time code hashing parameters
	Verifier VerifierParams `validate:"required"`
	// RNG optional override of the random source. Defaults to the cgoutils CSPRNG.
	RNG io.Reader `validate:"-"`
}

/*
NewCryptographyEngine define new cryptography engine

	@param ctx context.Context - execution context
	@param params CryptographyEngineParams - engine parameters
	@returns engine instance
*/
func NewCryptographyEngine(
	_ context.Context, params CryptographyEngineParams,
) (CryptographyEngine, error) {
	// Prepare core crypto engine
	engine, err := cgoCrypto.NewEngine(log.Fields{
		"package": "cgoutils", "module": "crypto", "component": "crypto-engine",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare core cryptography [%w]", err)
	}

	logTags := log.Fields{"module": "encryption", "component": "crypto-engine"}

	instance := &cryptoEngine{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		validator:     validator.New(),
		crypto:        engine,
		kdfIterations: params.KDFIterations,
		verifier:      params.Verifier,
	}

	if err := instance.validator.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid engine init parameters [%w]", err)
	}

	if params.RNG != nil {
		instance.rng = params.RNG
	} else {
		instance.rng = engine.GetRNGReader()
	}

	instance.serverSalt = sealServerSalt(params.ServerSalt)

	return instance, nil
}
