package resolver

import (
	"crypto/aes"
	"encoding/base64"
	"testing"
)

func TestEncryptPasswordRoundTrip(t *testing.T) {
	out, err := encryptPassword("S3cret.pass@2025")
	if err != nil {
		t.Fatalf("encryptPassword() error = %v", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(out)
	if err != nil {
		t.Fatalf("output is not base64: %v", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		t.Fatalf("ciphertext length %d is not block aligned", len(ciphertext))
	}

	block, err := aes.NewCipher([]byte(collektoKey))
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}
	plain := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		block.Decrypt(plain[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}

	pad := int(plain[len(plain)-1])
	if pad <= 0 || pad > aes.BlockSize {
		t.Fatalf("invalid pkcs7 padding byte %d", pad)
	}
	if got := string(plain[:len(plain)-pad]); got != "S3cret.pass@2025" {
		t.Fatalf("decrypted = %q, want original password", got)
	}
}

func TestEncryptPasswordPadsFullBlock(t *testing.T) {
	// A 16-byte password must gain a whole padding block.
	out, err := encryptPassword("0123456789abcdef")
	if err != nil {
		t.Fatalf("encryptPassword() error = %v", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(out)
	if err != nil {
		t.Fatalf("output is not base64: %v", err)
	}
	if len(ciphertext) != 2*aes.BlockSize {
		t.Fatalf("ciphertext length = %d, want %d", len(ciphertext), 2*aes.BlockSize)
	}
}
