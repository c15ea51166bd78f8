package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/google/uuid"
)

// oneTimeCodeDigits is the length of generated phone login codes.
const oneTimeCodeDigits = 6

// GenerateSessionToken creates an opaque server-side session token.
func GenerateSessionToken() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(secret), nil
}

// GenerateUnlockToken creates an opaque self-service unlock token.
func GenerateUnlockToken() string {
	return uuid.NewString()
}

// GenerateOneTimeCode creates a zero-padded numeric login code.
func GenerateOneTimeCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < oneTimeCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate one-time code: %w", err)
	}
	return fmt.Sprintf("%0*d", oneTimeCodeDigits, n), nil
}
