package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

func TestNewCipher_EmptyKey(t *testing.T) {
	_, err := NewCipher("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher("correct horse battery staple")
	require.NoError(t, err)

	plaintext := []byte("backup artifact bytes")
	sealed, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestCipher_RoundTrip_Empty(t *testing.T) {
	c, err := NewCipher("key")
	require.NoError(t, err)

	sealed, err := c.Encrypt(nil)
	require.NoError(t, err)

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestCipher_EncryptIsSaltedPerCall(t *testing.T) {
	c, err := NewCipher("key")
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("same input"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same input"))
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, b))
}

func TestCipher_WrongKeyFails(t *testing.T) {
	c1, err := NewCipher("right key")
	require.NoError(t, err)
	c2, err := NewCipher("wrong key")
	require.NoError(t, err)

	sealed, err := c1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = c2.Decrypt(sealed)
	assert.ErrorIs(t, err, domain.ErrDecryptFailed)
}

func TestCipher_RejectsPlaintextInput(t *testing.T) {
	c, err := NewCipher("key")
	require.NoError(t, err)

	_, err = c.Decrypt([]byte("just some file bytes, never encrypted"))
	assert.ErrorIs(t, err, domain.ErrDecryptFailed)
}

func TestCipher_RejectsTamperedCiphertext(t *testing.T) {
	c, err := NewCipher("key")
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Decrypt(sealed)
	assert.ErrorIs(t, err, domain.ErrDecryptFailed)
}
