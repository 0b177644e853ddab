package encryption

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxRandomDigits longest numeric string RandomDigits will produce
const MaxRandomDigits = 9

/*
RandomDigits generate a uniformly random numeric string

Values are drawn by rejection sampling so every code is equally likely.

	@param ctx context.Context - execution context
	@param length int - number of digits, 1 to MaxRandomDigits
	@return the digits, zero padded
*/
func (e *cryptoEngine) RandomDigits(_ context.Context, length int) (string, error) {
	if length < 1 || length > MaxRandomDigits {
		return "", fmt.Errorf("digit count %d outside of [1, %d]", length, MaxRandomDigits)
	}

	modulus := uint64(1)
	for itr := 0; itr < length; itr++ {
		modulus *= 10
	}
	// Largest multiple of modulus within the uint32 range
	limit := ((uint64(1) << 32) / modulus) * modulus

	buf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(e.rng, buf); err != nil {
			return "", fmt.Errorf("failed to read random source [%w]", err)
		}
		value := uint64(binary.BigEndian.Uint32(buf))
		if value < limit {
			return fmt.Sprintf("%0*d", length, value%modulus), nil
		}
	}
}
