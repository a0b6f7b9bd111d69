package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Challenge codes are four digits.
const (
	CodeMin = 1000
	CodeMax = 9999
)

// GenerateCode returns a uniformly distributed code in [CodeMin, CodeMax].
func GenerateCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(CodeMax-CodeMin+1))
	if err != nil {
		return 0, err
	}
	return CodeMin + int(n.Int64()), nil
}

// HashCode returns the SHA256 hash under which a user's pending code is stored.
// We store the hash, not the plaintext code.
func HashCode(userID uint, code int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", userID, code)))
	return hex.EncodeToString(hash[:])
}

// GenerateSecret creates a random url-safe secret, e.g. for the bot webhook path.
func GenerateSecret() (string, error) {
	bytes := make([]byte, 32) // 256 bits of entropy
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
