// Package credential hashes and verifies user passwords.
//
// Stored credentials have the form "<salt>:<hash>", both lower-case hex. The
// derivation uses scrypt keyed on the hex salt text, so a credential carries no
// parameters of its own; every node must share the same cost settings.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	saltBytes = 16
	keyBytes  = 64
)

type Params struct {
	N int
	R int
	P int
}

// DefaultParams costs roughly 32 MiB and 50-100ms per derivation on current hardware.
func DefaultParams() Params {
	return Params{N: 1 << 15, R: 8, P: 1}
}

type Codec struct {
	params Params
}

func NewCodec(params Params) *Codec {
	return &Codec{params: params}
}

// Hash derives a credential with a fresh random salt.
func (c *Codec) Hash(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	derived, err := c.derive(password, saltHex)
	if err != nil {
		return "", err
	}
	return saltHex + ":" + hex.EncodeToString(derived), nil
}

// Verify reports whether password matches credential. Malformed credentials
// never match.
func (c *Codec) Verify(password, credential string) bool {
	saltHex, hashHex, ok := strings.Cut(credential, ":")
	if !ok || saltHex == "" || hashHex == "" {
		return false
	}
	stored, err := hex.DecodeString(hashHex)
	if err != nil || len(stored) != keyBytes {
		return false
	}

	derived, err := c.derive(password, saltHex)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derived, stored) == 1
}

func (c *Codec) derive(password, saltHex string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(saltHex), c.params.N, c.params.R, c.params.P, keyBytes)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return key, nil
}
