// Package credential keeps the generation API key encrypted at rest and
// decides which key a request uses.
package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// secretbox uses a 256-bit (32-byte) key.
	keyLength = 32
	// Expected hex-encoded length (32 bytes = 64 hex characters).
	keyHexLength = 64

	keyFileName = "vault.key"
)

// LoadOrGenerateKey loads or generates the vault key.
// The key is stored in <dataPath>/vault.key as a hex-encoded string.
// If the file doesn't exist, a new key is generated and saved.
func LoadOrGenerateKey(dataPath string) (*[keyLength]byte, error) {
	keyPath := filepath.Join(dataPath, keyFileName)

	//#nosec G304 -- Key path is derived from the configured data path
	if keyBytes, err := os.ReadFile(keyPath); err == nil {
		keyHex := strings.TrimSpace(string(keyBytes))

		if len(keyHex) != keyHexLength {
			return nil, fmt.Errorf("invalid vault key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
		}

		raw, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid vault key format: not valid hex: %w", err)
		}

		var key [keyLength]byte
		copy(key[:], raw)
		return &key, nil
	}

	var key [keyLength]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate vault key: %w", err)
	}

	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key[:])), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save vault key: %w", err)
	}

	return &key, nil
}
