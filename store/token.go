package store

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	// 32 random bytes, hex encoded: well above the 128-bit entropy floor.
	shareTokenBytes    = 32
	shareTokenAttempts = 5
)

// newShareToken returns a fresh random hex token.
func newShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// insertWithFreshToken drives insert with newly generated tokens until one
// sticks, a non-collision error occurs, or attempts run out. The retry bound
// lives here, in the control flow, rather than in caller convention.
func insertWithFreshToken(attempts int, insert func(token string) error) (string, error) {
	for i := 0; i < attempts; i++ {
		token, err := newShareToken()
		if err != nil {
			return "", err
		}
		err = insert(token)
		if err == nil {
			return token, nil
		}
		if !isUniqueViolation(err) {
			return "", err
		}
	}
	return "", ErrTokenExhausted
}
