package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// GenerateAccessCode draws AccessCodeLength characters from AccessCodeAlphabet
// using the supplied random source. The alphabet has 32 symbols, so taking a
// byte modulo its size keeps the distribution uniform.
func GenerateAccessCode(r io.Reader) (string, error) {
	buf := make([]byte, AccessCodeLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	n := byte(len(AccessCodeAlphabet))
	for i, b := range buf {
		buf[i] = AccessCodeAlphabet[b%n]
	}
	return string(buf), nil
}

// NewAccessCode returns an access code drawn from crypto/rand.
func NewAccessCode() (string, error) {
	return GenerateAccessCode(rand.Reader)
}

// MakeRandHexString generates size random bytes and returns them hex encoded.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
