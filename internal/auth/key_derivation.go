package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeyLength is 32 bytes, the HMAC-SHA256 key size.
	DerivedKeyLength = 32

	purposeSessionJWT = "listsync-session-jwt-v1"
)

// ErrInvalidMasterSecret is returned when the master secret is empty.
var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a 32-byte key from masterSecret with HKDF-SHA256. Keys
// derived for different purposes are independent of each other and of the
// master secret.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	r := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	key := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSessionKey derives the key that signs user session tokens.
func DeriveSessionKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeSessionJWT)
}
