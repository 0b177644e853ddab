package encryption_test

import (
	"bytes"
	"context"
	"testing"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"github.com/alwitt/secretshare/encryption"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEncryptDecrypt(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	coreCrypto, err := cgoCrypto.NewEngine(log.Fields{
		"package": "cgoutils", "module": "crypto", "component": "crypto-engine",
	})
	assert.Nil(err)
	rng := coreCrypto.GetRNGReader()

	salt := []byte("0123456789abcdef0123456789abcdef")
	key := encryption.DeriveKey(uuid.NewString(), salt, 100000)

	plainText := []byte("correct horse battery staple")

	// Case 0: round trip
	encrypted, err := encryption.Encrypt(key, plainText, rng)
	assert.Nil(err)
	assert.Len(encrypted.Nonce, encryption.NonceLen)
	assert.Len(encrypted.CipherText, len(plainText)+encryption.TagLen)
	decrypted, err := encryption.Decrypt(key, encrypted)
	assert.Nil(err)
	assert.Equal(plainText, decrypted)

	// Case 1: fresh nonce each time
	{
		again, err := encryption.Encrypt(key, plainText, rng)
		assert.Nil(err)
		assert.NotEqual(encrypted.Nonce, again.Nonce)
		assert.NotEqual(encrypted.CipherText, again.CipherText)
	}

	// Case 2: tampered cipher text
	{
		tampered := encryption.EncryptedData{
			CipherText: bytes.Clone(encrypted.CipherText), Nonce: encrypted.Nonce,
		}
		tampered.CipherText[0] ^= 0x01
		_, err := encryption.Decrypt(key, tampered)
		assert.ErrorIs(err, encryption.ErrAuthenticationFailure)
	}

	// Case 3: tampered nonce
	{
		tampered := encryption.EncryptedData{
			CipherText: encrypted.CipherText, Nonce: bytes.Clone(encrypted.Nonce),
		}
		tampered.Nonce[0] ^= 0x01
		_, err := encryption.Decrypt(key, tampered)
		assert.ErrorIs(err, encryption.ErrAuthenticationFailure)
	}

	// Case 4: wrong key
	{
		otherKey := encryption.DeriveKey(uuid.NewString(), salt, 100000)
		_, err := encryption.Decrypt(otherKey, encrypted)
		assert.ErrorIs(err, encryption.ErrAuthenticationFailure)
	}

	// Case 5: malformed input
	{
		_, err := encryption.Decrypt(key, encryption.EncryptedData{
			CipherText: encrypted.CipherText, Nonce: encrypted.Nonce[:8],
		})
		assert.ErrorIs(err, encryption.ErrAuthenticationFailure)

		_, err = encryption.Decrypt(key, encryption.EncryptedData{
			CipherText: encrypted.CipherText[:encryption.TagLen-1], Nonce: encrypted.Nonce,
		})
		assert.ErrorIs(err, encryption.ErrAuthenticationFailure)
	}

	// Case 6: empty plain text still carries a tag
	{
		empty, err := encryption.Encrypt(key, []byte{}, rng)
		assert.Nil(err)
		assert.Len(empty.CipherText, encryption.TagLen)
		decrypted, err := encryption.Decrypt(key, empty)
		assert.Nil(err)
		assert.Empty(decrypted)
	}
}

func TestCryptoEngineSealOpenSecret(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, "0123456789abcdef0123456789abcdef")
	otherSalt := newTestEngine(t, "fedcba9876543210fedcba9876543210")

	secret1 := uuid.NewString()
	secret2 := uuid.NewString()
	plainText := []byte("launch codes: 0000")

	sealed, err := uut.SealSecret(utCtx, secret1, plainText)
	assert.Nil(err)

	// Case 0: open with matching ID
	opened, err := uut.OpenSecret(utCtx, secret1, sealed)
	assert.Nil(err)
	assert.Equal(plainText, opened)

	// Case 1: key is bound to the secret ID
	_, err = uut.OpenSecret(utCtx, secret2, sealed)
	assert.ErrorIs(err, encryption.ErrAuthenticationFailure)

	// Case 2: key is bound to the server salt
	_, err = otherSalt.OpenSecret(utCtx, secret1, sealed)
	assert.ErrorIs(err, encryption.ErrAuthenticationFailure)
}
