package encryption

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/alwitt/secretshare/models"
	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"
)

// KeyLen length of the per-secret symmetric key
const KeyLen = 32

// KDFAlgorithm the key derivation algorithm in use
const KDFAlgorithm = "pbkdf2-sha256"

// kdfFingerprintInput derivation input used to fingerprint the server salt
const kdfFingerprintInput = "secretshare/kdf-fingerprint"

/*
DeriveKey derive the symmetric key of a secret

The same secret ID, salt, and iteration count always produce the same key.

	@param secretID string - the secret ID
	@param serverSalt []byte - process-wide salt
	@param iterations int - PBKDF2 iteration count
	@return 256-bit key. Caller should wipe it after use.
*/
func DeriveKey(secretID string, serverSalt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(secretID), serverSalt, iterations, KeyLen, sha256.New)
}

// sealServerSalt move a copy of the salt into an encrypted enclave
func sealServerSalt(salt []byte) *memguard.Enclave {
	saltCopy := make([]byte, len(salt))
	copy(saltCopy, salt)
	// NewEnclave wipes its input
	return memguard.NewEnclave(saltCopy)
}

// deriveKey derive the key of a secret with the sealed server salt
func (e *cryptoEngine) deriveKey(secretID string) ([]byte, error) {
	saltBuffer, err := e.serverSalt.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open server salt enclave [%w]", err)
	}
	defer saltBuffer.Destroy()

	return DeriveKey(secretID, saltBuffer.Bytes(), e.kdfIterations), nil
}

/*
KDFParams describe the key derivation in use, including a fingerprint of the server salt

	@param ctx context.Context - execution context
	@return the KDF parameters
*/
func (e *cryptoEngine) KDFParams(_ context.Context) (models.KDFParams, error) {
	key, err := e.deriveKey(kdfFingerprintInput)
	if err != nil {
		return models.KDFParams{}, err
	}
	defer memguard.WipeBytes(key)

	fingerprint := sha256.Sum256(key)
	return models.KDFParams{
		Algorithm:       KDFAlgorithm,
		Iterations:      e.kdfIterations,
		SaltFingerprint: hex.EncodeToString(fingerprint[:]),
	}, nil
}
