package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DeviceTokenPrefix is the prefix for measurement point device tokens
	DeviceTokenPrefix = "dev"
	// DeviceTokenLength is the length of the random part in bytes
	DeviceTokenLength = 32
	// BCryptCost is the cost factor for password hashing
	BCryptCost = 12
)

// GenerateDeviceToken generates a new device token with format: dev_<random_base64>
func GenerateDeviceToken() (string, error) {
	randomBytes := make([]byte, DeviceTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return fmt.Sprintf("%s_%s", DeviceTokenPrefix, base64.RawURLEncoding.EncodeToString(randomBytes)), nil
}

// HashDeviceToken returns the hex SHA-256 digest of a device token. Device
// tokens carry 256 bits of entropy, so a fast digest is sufficient and keeps
// per-request verification cheap.
func HashDeviceToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyDeviceToken compares a presented token with a stored digest in constant time.
func VerifyDeviceToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashDeviceToken(token)), []byte(hash)) == 1
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a provided password with its bcrypt hash
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
