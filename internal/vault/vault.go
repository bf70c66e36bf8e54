package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Envelope layout: hex(iv):hex(tag):hex(ciphertext).
const (
	ivSize  = 16
	tagSize = 16
	keySize = 32

	// The salt is fixed on purpose: the master key is a generated
	// high-entropy secret, not a user password. Changing the derivation
	// parameters invalidates every stored envelope.
	derivationSalt = "salt"

	// Bound into the GCM authentication so ciphertext from another
	// application never opens here.
	associatedData = "cronwatch"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrDecrypt           = errors.New("decryption failed")
)

func deriveKey(masterKey string) ([]byte, error) {
	return scrypt.Key([]byte(masterKey), []byte(derivationSalt), 16384, 8, 1, keySize)
}

// Seal encrypts plaintext under the master key with a fresh random IV.
func Seal(plaintext, masterKey string) (string, error) {
	key, err := deriveKey(masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), []byte(associatedData))
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Open decrypts an envelope produced by Seal. A wrong segment count is a
// caller error (ErrMalformedEnvelope); tamper and wrong-key failures
// surface as ErrDecrypt.
func Open(envelope, masterKey string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrMalformedEnvelope
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", ErrMalformedEnvelope
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrMalformedEnvelope
	}

	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedEnvelope
	}

	key, err := deriveKey(masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), []byte(associatedData))
	if err != nil {
		return "", ErrDecrypt
	}

	return string(plaintext), nil
}

// MaskSecret renders a secret safe for logs: a fixed-width mask plus the
// last visible characters. The mask length never depends on the secret
// length.
func MaskSecret(secret string, visible int) string {
	const mask = "********"
	if secret == "" || len(secret) <= visible {
		return mask
	}
	return mask + secret[len(secret)-visible:]
}

// GenerateKey returns a new random master key suitable for Seal.
func GenerateKey() (string, error) {
	b := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
