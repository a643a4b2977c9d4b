package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// Vault encrypts and decrypts small secrets (vendor API keys) with
// AES-256-CBC. The key is derived from the application secret and a salt, so
// existing ciphertexts stay readable across restarts as long as both values
// are stable.
//
// Ciphertext layout: base64(IV || CBC(PKCS7(plaintext))), a fresh random
// 16-byte IV per encryption.
type Vault struct {
	key []byte
}

var (
	// ErrCiphertextInvalid is returned when stored data cannot be decrypted,
	// typically after a secret or salt change.
	ErrCiphertextInvalid = errors.New("ciphertext invalid or key mismatch")
)

// NewVault derives the AES-256 key as SHA-256(secret + salt).
func NewVault(secret, salt string) (*Vault, error) {
	if secret == "" || salt == "" {
		return nil, errors.New("vault requires a non-empty secret and salt")
	}
	sum := sha256.Sum256([]byte(secret + salt))
	return &Vault{key: sum[:]}, nil
}

// Encrypt returns the base64-encoded ciphertext of plaintext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It returns ErrCiphertextInvalid for anything that
// does not decode to a well-formed ciphertext under the current key.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", ErrCiphertextInvalid
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	iv, data := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
