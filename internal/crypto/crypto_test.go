package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	c, err := NewCipher(GenerateKey())
	require.NoError(t, err)

	sealed, err := c.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hunter2")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher("abcd")
	assert.ErrorIs(t, err, ErrKeyLength)

	_, err = NewCipher(strings.Repeat("z", 64))
	assert.Error(t, err)
}

func TestDecryptWithWrongKey(t *testing.T) {
	a, err := NewCipher(GenerateKey())
	require.NoError(t, err)
	b, err := NewCipher(GenerateKey())
	require.NoError(t, err)

	sealed, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)
}
