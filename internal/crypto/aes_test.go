package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func TestEncryptAES_DecryptAES_RoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello world")},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"large", make([]byte, 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, AESKeySize)
			if _, err := rand.Read(key); err != nil {
				t.Fatal(err)
			}

			ciphertext, err := EncryptAES(key, tt.plaintext)
			if err != nil {
				t.Fatalf("EncryptAES() error = %v", err)
			}

			expectedLen := AESNonceSize + len(tt.plaintext) + AESTagSize
			if len(ciphertext) != expectedLen {
				t.Errorf("ciphertext length = %d, want %d", len(ciphertext), expectedLen)
			}

			decrypted, err := DecryptAES(key, ciphertext)
			if err != nil {
				t.Fatalf("DecryptAES() error = %v", err)
			}
			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("decrypted = %v, want %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptAES_FreshNonce(t *testing.T) {
	t.Parallel()
	key := make([]byte, AESKeySize)
	a, err := EncryptAES(key, []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptAES(key, []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestEncryptAES_InvalidKeySize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		keySize int
	}{
		{"empty", 0},
		{"too short", 16},
		{"too long", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keySize)
			_, err := EncryptAES(key, []byte("test"))
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("EncryptAES() error = %v, want %v", err, ErrInvalidKeySize)
			}
		})
	}
}

func TestDecryptAES_Failures(t *testing.T) {
	t.Parallel()
	key := make([]byte, AESKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	ciphertext, err := EncryptAES(key, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	otherKey := make([]byte, AESKeySize)
	tampered := append([]byte(nil), ciphertext...)
	tampered[len(tampered)-1] ^= 0x01

	tests := []struct {
		name       string
		key        []byte
		ciphertext []byte
	}{
		{"too short", key, make([]byte, AESNonceSize)},
		{"wrong key", otherKey, ciphertext},
		{"tampered", key, tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptAES(tt.key, tt.ciphertext)
			if !errors.Is(err, ErrDecryptionFailed) {
				t.Errorf("DecryptAES() error = %v, want %v", err, ErrDecryptionFailed)
			}
		})
	}
}
