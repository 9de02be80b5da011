package resolver

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"fmt"
)

// collektoKey is the fixed AES key the Collekto frontend uses (CryptoJS
// AES-ECB with PKCS7 padding). The backend expects passwords encrypted the
// same way.
const collektoKey = "collektoencrypte"

// encryptPassword produces the base64 AES-ECB/PKCS7 ciphertext of a
// plaintext password, matching the CryptoJS settings of the Collekto login
// form.
func encryptPassword(raw string) (string, error) {
	block, err := aes.NewCipher([]byte(collektoKey))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(raw), aes.BlockSize)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}
