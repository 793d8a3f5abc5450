package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
)

// DefaultVerifierLength is the code verifier length used by the login flow.
const DefaultVerifierLength = 64

// unreserved is the RFC 3986 unreserved character set.
const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// ErrInvalidVerifierLength is returned for a non-positive verifier length.
var ErrInvalidVerifierLength = errors.New("code verifier length must be positive")

// GenerateCodeVerifier returns a random string of length characters drawn
// uniformly from the unreserved URI characters.
func GenerateCodeVerifier(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidVerifierLength
	}

	max := big.NewInt(int64(len(unreserved)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = unreserved[n.Int64()]
	}
	return string(out), nil
}

// GenerateCodeChallenge creates the S256 code challenge for verifier.
func GenerateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
