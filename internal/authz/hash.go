package authz

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

type domainKey [32]byte

// Domain keys separate session token hashes from request fingerprints. They
// are the ASCII domain name zero-padded to 32 bytes; changing one
// invalidates every stored hash of that domain.
var (
	sessionDomainKey = domainKey{
		't', 'i', 'c', 'k', 'e', 't', 'i', 'n', 'g', '.', 's', 'e', 's', 's', 'i', 'o',
		'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	fingerprintDomainKey = domainKey{
		't', 'i', 'c', 'k', 'e', 't', 'i', 'n', 'g', '.', 'i', 'd', 'e', 'm', 'p', 'o',
		't', 'e', 'n', 'c', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

const tokenBytes = 32

func keyedHash(key domainKey, parts ...[]byte) string {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("authz: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, part := range parts {
		// Length-prefix each part so ("ab", "c") and ("a", "bc") differ.
		fmt.Fprintf(hasher, "%d:", len(part))
		hasher.Write(part)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// NewSessionToken returns an opaque bearer token and the hash to store for
// it. Only the hash ever reaches the database.
func NewSessionToken() (token string, hash string, err error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, HashToken(token), nil
}

func HashToken(token string) string {
	return keyedHash(sessionDomainKey, []byte(token))
}

// Fingerprint summarizes a request so retries under one idempotency key can
// be told apart from different requests reusing it.
func Fingerprint(parts ...[]byte) string {
	return keyedHash(fingerprintDomainKey, parts...)
}
