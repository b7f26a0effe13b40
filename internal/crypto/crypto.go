package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gtank/cryptopasta"
)

var ErrKeyLength = errors.New("secret key must be 32 bytes hex-encoded")

// Cipher is a hex-encoded AES-256 key used to keep credentials out of
// plain text in the .env file.
type Cipher string

func NewCipher(hexKey string) (Cipher, error) {
	c := Cipher(hexKey)
	if _, err := c.secureKey(); err != nil {
		return "", err
	}
	return c, nil
}

// GenerateKey returns a fresh key in the form NewCipher accepts.
func GenerateKey() string {
	key := cryptopasta.NewEncryptionKey()
	return hex.EncodeToString(key[:])
}

func (c Cipher) secureKey() (*[32]byte, error) {
	raw, err := hex.DecodeString(string(c))
	if err != nil {
		return nil, fmt.Errorf("error decoding secret key: %w", err)
	}
	if len(raw) != 32 {
		return nil, ErrKeyLength
	}

	return (*[32]byte)(raw), nil
}

func (c Cipher) Encrypt(value string) (string, error) {
	key, err := c.secureKey()
	if err != nil {
		return "", err
	}

	sealed, err := cryptopasta.Encrypt([]byte(value), key)
	if err != nil {
		return "", fmt.Errorf("error encrypting value: %w", err)
	}

	return hex.EncodeToString(sealed), nil
}

func (c Cipher) Decrypt(value string) (string, error) {
	key, err := c.secureKey()
	if err != nil {
		return "", err
	}

	sealed, err := hex.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("error decoding ciphertext: %w", err)
	}

	plain, err := cryptopasta.Decrypt(sealed, key)
	if err != nil {
		return "", fmt.Errorf("error decrypting value: %w", err)
	}

	return string(plain), nil
}
