package security

import (
	"crypto/cipher"
	"crypto/des"
	"encoding/base64"
	"fmt"
)

// DecryptText decrypts a base64-encoded 3DES-ECB ciphertext with PKCS#5
// padding, the format provisioning tooling uses for the cluster admin secret.
// key must be 24 bytes.
func DecryptText(encrypted, key string) (string, error) {
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return "", fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	ecbCrypt(block.Decrypt, block.BlockSize(), plaintext, ciphertext)

	plaintext, err = unpad(plaintext, block.BlockSize())
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newCipher(key string) (cipher.Block, error) {
	if len(key) != 24 {
		return nil, fmt.Errorf("passkey must be 24 bytes for 3DES, got %d", len(key))
	}
	block, err := des.NewTripleDESCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return block, nil
}

// ecbCrypt applies fn block by block; the standard library has no ECB mode
func ecbCrypt(fn func(dst, src []byte), size int, dst, src []byte) {
	for i := 0; i < len(src); i += size {
		fn(dst[i:i+size], src[i:i+size])
	}
}

func unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
