package encryption

import (
	"context"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceLen AEAD nonce length
const NonceLen = chacha20poly1305.NonceSize

// TagLen AEAD authentication tag length
const TagLen = chacha20poly1305.Overhead

/*
Encrypt encrypt plain text with a fresh random nonce

	@param key []byte - 256-bit key
	@param plainText []byte - the plain text to encrypt
	@param rng io.Reader - nonce source
	@return nonce and cipher text followed by the tag
*/
func Encrypt(key []byte, plainText []byte, rng io.Reader) (EncryptedData, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return EncryptedData{}, fmt.Errorf("unable to define AEAD client [%w]", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rng, nonce); err != nil {
		return EncryptedData{}, fmt.Errorf("failed to init AEAD nonce [%w]", err)
	}

	return EncryptedData{CipherText: aead.Seal(nil, nonce, plainText, nil), Nonce: nonce}, nil
}

/*
Decrypt authenticate and decrypt cipher text

Nothing is returned unless the tag verifies.

	@param key []byte - 256-bit key
	@param encrypted EncryptedData - nonce and cipher text followed by the tag
	@return plain text, or ErrAuthenticationFailure
*/
func Decrypt(key []byte, encrypted EncryptedData) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("unable to define AEAD client [%w]", err)
	}

	if len(encrypted.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf(
			"nonce length %d =/= %d [%w]",
			len(encrypted.Nonce), aead.NonceSize(), ErrAuthenticationFailure,
		)
	}
	if len(encrypted.CipherText) < aead.Overhead() {
		return nil, fmt.Errorf(
			"cipher text shorter than tag [%w]", ErrAuthenticationFailure,
		)
	}

	plainText, err := aead.Open(nil, encrypted.Nonce, encrypted.CipherText, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cipher text [%w]", ErrAuthenticationFailure)
	}
	return plainText, nil
}

/*
SealSecret derive the key of a secret and encrypt its plain text

	@param ctx context.Context - execution context
	@param secretID string - the secret ID
	@param plainText []byte - the plain text to encrypt
	@return the cipher text
*/
func (e *cryptoEngine) SealSecret(
	_ context.Context, secretID string, plainText []byte,
) (EncryptedData, error) {
	key, err := e.deriveKey(secretID)
	if err != nil {
		return EncryptedData{}, fmt.Errorf("failed to derive key of secret %s [%w]", secretID, err)
	}
	defer memguard.WipeBytes(key)

	encrypted, err := Encrypt(key, plainText, e.rng)
	if err != nil {
		return EncryptedData{}, fmt.Errorf("failed to encrypt secret %s [%w]", secretID, err)
	}
	return encrypted, nil
}

/*
OpenSecret derive the key of a secret and decrypt its cipher text

	@param ctx context.Context - execution context
	@param secretID string - the secret ID
	@param encrypted EncryptedData - the cipher text to decrypt
	@return the plain text
*/
func (e *cryptoEngine) OpenSecret(
	ctx context.Context, secretID string, encrypted EncryptedData,
) ([]byte, error) {
	key, err := e.deriveKey(secretID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key of secret %s [%w]", secretID, err)
	}
	defer memguard.WipeBytes(key)

	plainText, err := Decrypt(key, encrypted)
	if err != nil {
		log.WithError(err).
			WithFields(e.GetLogTagsForContext(ctx)).
			WithField("secret", secretID).
			Error("Stored secret failed authentication")
		return nil, fmt.Errorf("failed to decrypt secret %s [%w]", secretID, err)
	}
	return plainText, nil
}
