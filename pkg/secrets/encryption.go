package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// deriveAESKey() derives a per secret AES-256 key from the master key,
// salted with the secret ID.
func deriveAESKey(masterKey []byte, secretID string) []byte {
	kdf := hkdf.New(sha256.New, masterKey, []byte(secretID), nil)
	key := make([]byte, 32)
	_, _ = io.ReadFull(kdf, key) // never short for 32 bytes
	return key
}

// encryptAESGCM() seals plaintext and returns hex(nonce || ciphertext).
func encryptAESGCM(key, plaintext []byte) (string, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return hex.EncodeToString(aesGCM.Seal(nonce, nonce, plaintext, nil)), nil
}

func decryptAESGCM(key []byte, encryptedData string) (string, error) {
	data, err := hex.DecodeString(encryptedData)
	if err != nil {
		return "", err
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := aesGCM.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
