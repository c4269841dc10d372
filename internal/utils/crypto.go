package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const tenantKeyInfo = "tenant-envelope-key/v1"

var (
	ErrEmptyKeyMaterial = errors.New("key material cannot be empty")
	ErrCiphertextShort  = errors.New("ciphertext is too short")
	ErrDecryptionFailed = errors.New("message authentication failed")
)

// GenerateTenantSalt returns a deterministic salt for the tenant identified by tenantID and realm. The same tenant
// always produces the same salt regardless of casing and surrounding spaces.
func GenerateTenantSalt(tenantID, realm string) (string, error) {
	tenantID = strings.ToLower(strings.TrimSpace(tenantID))
	realm = strings.ToLower(strings.TrimSpace(realm))
	if tenantID == "" || realm == "" {
		return "", fmt.Errorf("generating tenant salt: %w", ErrEmptyKeyMaterial)
	}

	sum := sha256.Sum256([]byte(tenantID + ":" + realm))
	return hex.EncodeToString(sum[:]), nil
}

// DeriveTenantKey derives a 256-bit key for the given salt from the master key using HKDF-SHA256.
func DeriveTenantKey(masterKey []byte, salt string) ([]byte, error) {
	if len(masterKey) == 0 || salt == "" {
		return nil, fmt.Errorf("deriving tenant key: %w", ErrEmptyKeyMaterial)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	reader := hkdf.New(sha256.New, masterKey, []byte(salt), []byte(tenantKeyInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("reading derived key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with XChaCha20-Poly1305. The random nonce is prepended to the returned ciphertext.
func Encrypt(plaintext, key, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err = rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Decrypt opens a ciphertext produced by Encrypt. It returns ErrDecryptionFailed when the key or the additional
// data don't match the ones used to encrypt.
func Decrypt(ciphertext, key, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertextShort
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
