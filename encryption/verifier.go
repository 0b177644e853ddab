package encryption

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
)

// ErrMalformedVerifier the encoded verifier could not be parsed
var ErrMalformedVerifier = errors.New("malformed verifier")

// verifierAlgorithm PHC identifier of the verifier hash
const verifierAlgorithm = "argon2id"

/*
HashVerifier compute the slow salted hash of a password or one-time code

The result is PHC encoded: $argon2id$v=19$m=<KiB>,t=<time>,p=<threads>$<salt>$<hash>

	@param ctx context.Context - execution context
	@param secret string - the value to hash
	@return encoded verifier
*/
func (e *cryptoEngine) HashVerifier(_ context.Context, secret string) (string, error) {
	salt := make([]byte, e.verifier.SaltLen)
	if _, err := io.ReadFull(e.rng, salt); err != nil {
		return "", fmt.Errorf("failed to generate verifier salt [%w]", err)
	}

	hash := argon2.IDKey(
		[]byte(secret),
		salt,
		e.verifier.Time,
		e.verifier.MemoryKiB,
		e.verifier.Threads,
		e.verifier.KeyLen,
	)
	defer memguard.WipeBytes(hash)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		verifierAlgorithm,
		argon2.Version,
		e.verifier.MemoryKiB,
		e.verifier.Time,
		e.verifier.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// decodedVerifier parsed PHC verifier
type decodedVerifier struct {
	params VerifierParams
	salt   []byte
	hash   []byte
}

// decodeVerifier parse a PHC encoded argon2id verifier
func decodeVerifier(encoded string) (decodedVerifier, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return decodedVerifier{}, fmt.Errorf("unexpected field count [%w]", ErrMalformedVerifier)
	}
	if parts[1] != verifierAlgorithm {
		return decodedVerifier{}, fmt.Errorf(
			"unsupported algorithm '%s' [%w]", parts[1], ErrMalformedVerifier,
		)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return decodedVerifier{}, fmt.Errorf("bad version field [%w]", ErrMalformedVerifier)
	}
	if version != argon2.Version {
		return decodedVerifier{}, fmt.Errorf(
			"unsupported version %d [%w]", version, ErrMalformedVerifier,
		)
	}

	result := decodedVerifier{}
	if _, err := fmt.Sscanf(
		parts[3],
		"m=%d,t=%d,p=%d",
		&result.params.MemoryKiB,
		&result.params.Time,
		&result.params.Threads,
	); err != nil {
		return decodedVerifier{}, fmt.Errorf("bad parameter field [%w]", ErrMalformedVerifier)
	}
	if result.params.Time < 1 || result.params.Threads < 1 {
		return decodedVerifier{}, fmt.Errorf("invalid parameters [%w]", ErrMalformedVerifier)
	}

	var err error
	if result.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return decodedVerifier{}, fmt.Errorf("bad salt encoding [%w]", ErrMalformedVerifier)
	}
	if result.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return decodedVerifier{}, fmt.Errorf("bad hash encoding [%w]", ErrMalformedVerifier)
	}
	if len(result.hash) == 0 {
		return decodedVerifier{}, fmt.Errorf("empty hash [%w]", ErrMalformedVerifier)
	}
	result.params.SaltLen = uint32(len(result.salt))
	result.params.KeyLen = uint32(len(result.hash))

	return result, nil
}

/*
CheckVerifier verify a candidate against an encoded verifier in constant time

The hash parameters are read from the verifier, so verifiers created under older
settings remain valid.

	@param ctx context.Context - execution context
	@param encoded string - the encoded verifier
	@param candidate string - the candidate value
	@return whether the candidate matches
*/
func (e *cryptoEngine) CheckVerifier(
	_ context.Context, encoded string, candidate string,
) (bool, error) {
	parsed, err := decodeVerifier(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(candidate),
		parsed.salt,
		parsed.params.Time,
		parsed.params.MemoryKiB,
		parsed.params.Threads,
		parsed.params.KeyLen,
	)
	defer memguard.WipeBytes(computed)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}
