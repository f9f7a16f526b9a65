package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// VerifierAlphabet is the set of characters a generated verifier draws from.
const VerifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	MinVerifierLength     = 43
	MaxVerifierLength     = 128
	DefaultVerifierLength = 128
)

// ChallengeMethod is the only code challenge method this package issues.
const ChallengeMethod = "S256"

// largest multiple of len(VerifierAlphabet) below 256, so b%62 stays uniform
const rejectAbove = 256 - 256%len(VerifierAlphabet)

// GenerateVerifier returns a PKCE code verifier of the given length drawn
// uniformly from VerifierAlphabet.
func GenerateVerifier(length int) (string, error) {
	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", fmt.Errorf("auth: verifier length %d outside [%d,%d]", length, MinVerifierLength, MaxVerifierLength)
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("auth: read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, VerifierAlphabet[int(b)%len(VerifierAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// ChallengeS256 derives the S256 code challenge: unpadded base64url of the
// SHA-256 digest of verifier.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
