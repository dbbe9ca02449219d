// Package crypto seals backup artifacts with AES-256-GCM. Keys are
// derived from the configured passphrase with PBKDF2-SHA256; the salt and
// nonce travel with the ciphertext, so artifacts are self-contained.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100_000
)

// magic prefixes every sealed artifact so restores of plaintext uploads
// fail loudly instead of producing garbage.
var magic = []byte("SHLTR1")

// Cipher implements driven.Cipher.
type Cipher struct {
	passphrase []byte
}

var _ driven.Cipher = (*Cipher)(nil)

// NewCipher creates a cipher from the configured passphrase.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty encryption key", domain.ErrInvalidInput)
	}
	return &Cipher{passphrase: []byte(passphrase)}, nil
}

// Encrypt seals data. Output layout: magic || salt || nonce || ciphertext.
func (c *Cipher) Encrypt(data []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(data)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, nil), nil
}

// Decrypt opens data previously produced by Encrypt.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if len(data) < len(magic)+saltSize || string(data[:len(magic)]) != string(magic) {
		return nil, fmt.Errorf("%w: not an encrypted artifact", domain.ErrDecryptFailed)
	}
	data = data[len(magic):]

	salt := data[:saltSize]
	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	rest := data[saltSize:]
	if len(rest) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: truncated artifact", domain.ErrDecryptFailed)
	}

	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryptFailed, err)
	}
	return plaintext, nil
}

// aead builds the AES-GCM instance for a given salt.
func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}
