package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenIDBytes is the number of random bytes in a jti (128 bits)
const TokenIDBytes = 16

// NewTokenID returns a hex encoded random token identifier
func NewTokenID() (string, error) {
	b := make([]byte, TokenIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
