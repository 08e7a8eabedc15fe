// Package passhash derives and checks one-way password verifiers.
//
// Two algorithms are supported: Argon2id (default) and bcrypt. Verify picks
// the algorithm from the stored hash itself, so switching the configured
// algorithm does not lock out existing accounts.
package passhash

import (
	"errors"
	"fmt"
	"strings"
)

const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

var (
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrPasswordTooLong is returned by hashers with an input length limit.
	ErrPasswordTooLong = errors.New("password too long")
)

// Hasher produces and checks encoded password hashes.
type Hasher interface {
	Name() string
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

// New returns the Hasher registered under algorithm.
func New(algorithm string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmArgon2id:
		return NewArgon2(), nil
	case AlgorithmBcrypt:
		return NewBcrypt(), nil
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", algorithm)
	}
}

// Verify checks password against encoded using whichever algorithm
// produced encoded.
func Verify(encoded, password string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return NewArgon2().Verify(encoded, password)
	case isBcrypt(encoded):
		return NewBcrypt().Verify(encoded, password)
	default:
		return false, ErrInvalidHash
	}
}
