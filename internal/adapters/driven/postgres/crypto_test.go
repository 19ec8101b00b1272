package postgres

import (
	"bytes"
	"errors"
	"testing"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestSecretEncryptor_Roundtrip(t *testing.T) {
	enc, err := NewSecretEncryptor(testKey(0x42))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	secrets := &domain.ProviderSecrets{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}

	blob, err := enc.Encrypt(secrets)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if blob[0] != secretVersion {
		t.Errorf("expected version byte %d, got %d", secretVersion, blob[0])
	}
	if bytes.Contains(blob, []byte("client-secret")) {
		t.Error("plaintext must not appear in the encrypted blob")
	}

	var decrypted domain.ProviderSecrets
	if err := enc.Decrypt(blob, &decrypted); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if decrypted != *secrets {
		t.Errorf("roundtrip mismatch: %+v", decrypted)
	}
}

func TestSecretEncryptor_NonceVariesPerEncryption(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x42))

	first, _ := enc.Encrypt("same value")
	second, _ := enc.Encrypt("same value")

	if bytes.Equal(first, second) {
		t.Error("encrypting the same value twice must produce different blobs")
	}
}

func TestSecretEncryptor_WrongKey(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x42))
	other, _ := NewSecretEncryptor(testKey(0x43))

	blob, _ := enc.Encrypt("secret")

	var out string
	if err := other.Decrypt(blob, &out); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with the wrong key, got %v", err)
	}
}

func TestSecretEncryptor_TamperedBlob(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x42))

	blob, _ := enc.Encrypt("secret")
	blob[len(blob)-1] ^= 0xFF

	var out string
	if err := enc.Decrypt(blob, &out); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for tampered blob, got %v", err)
	}
}

func TestSecretEncryptor_ShortBlob(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x42))

	var out string
	if err := enc.Decrypt([]byte{secretVersion, 0x00}, &out); !errors.Is(err, ErrInvalidBlobSize) {
		t.Errorf("expected ErrInvalidBlobSize, got %v", err)
	}
}

func TestSecretEncryptor_UnsupportedVersion(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey(0x42))

	blob, _ := enc.Encrypt("secret")
	blob[0] = 0x7F

	var out string
	if err := enc.Decrypt(blob, &out); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestNewSecretEncryptor_KeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		if _, err := NewSecretEncryptor(make([]byte, size)); !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("key size %d: expected ErrInvalidKeySize, got %v", size, err)
		}
	}
	if _, err := NewSecretEncryptor(make([]byte, 32)); err != nil {
		t.Errorf("32-byte key must be accepted: %v", err)
	}
}
