/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

// resetSingleton resets the singleton instance for testing
func resetSingleton() {
	once = sync.Once{}
	instance = nil
}

func TestNewCrypto(t *testing.T) {
	tests := []struct {
		name           string
		setupFunc      func(t *testing.T) func()
		expectInstance bool
		expectKey      bool
	}{
		{
			name: "crypto disabled",
			setupFunc: func(t *testing.T) func() {
				resetSingleton()
				config.SetValue("crypto.enable", "false")
				return func() {
					config.SetValue("crypto.enable", "")
				}
			},
			expectInstance: true,
			expectKey:      false,
		},
		{
			name: "crypto enabled with valid key",
			setupFunc: func(t *testing.T) func() {
				resetSingleton()
				tmpDir := t.TempDir()
				secretPath := filepath.Join(tmpDir, "crypto")
				err := os.MkdirAll(secretPath, 0755)
				assert.NoError(t, err)
				err = os.WriteFile(filepath.Join(secretPath, "key"), []byte("1234567890123456"), 0644)
				assert.NoError(t, err)

				config.SetValue("crypto.enable", "true")
				config.SetValue("crypto.secret_path", secretPath)
				return func() {
					config.SetValue("crypto.enable", "")
					config.SetValue("crypto.secret_path", "")
				}
			},
			expectInstance: true,
			expectKey:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := tt.setupFunc(t)
			defer cleanup()

			crypto := NewCrypto()
			if tt.expectInstance {
				assert.NotNil(t, crypto)
			}
			if tt.expectKey {
				assert.NotEmpty(t, crypto.key)
			}
		})
	}
}

func TestCrypto_EncryptDecrypt_Disabled(t *testing.T) {
	resetSingleton()
	config.SetValue("crypto.enable", "false")
	defer config.SetValue("crypto.enable", "")

	crypto := NewCrypto()
	assert.NotNil(t, crypto)

	plainText := "postgres://tenant:secret@db:5432/storage"

	encrypted, err := crypto.Encrypt([]byte(plainText))
	assert.NoError(t, err)
	assert.Equal(t, plainText, encrypted)

	decrypted, err := crypto.Decrypt(encrypted)
	assert.NoError(t, err)
	assert.Equal(t, plainText, decrypted)
}

func TestCrypto_EncryptDecrypt_Enabled(t *testing.T) {
	resetSingleton()

	config.SetValue("crypto.enable", "true")
	config.SetValue("auth.encryption_key", "super-secret-encryption-key")
	defer func() {
		config.SetValue("crypto.enable", "")
		config.SetValue("auth.encryption_key", "")
	}()

	crypto := NewCrypto()
	assert.NotNil(t, crypto)

	testCases := []struct {
		name      string
		plainText string
	}{
		{"database url", "postgres://tenant:secret@db:5432/storage"},
		{"empty string", ""},
		{"special characters", "!@#$%^&*()_+-=[]{}|;':\",./<>?"},
		{"unicode text", "望舌诊病"},
		{"long text", "This is a longer text that spans multiple characters and tests the encryption capability of the system."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := crypto.Encrypt([]byte(tc.plainText))
			assert.NoError(t, err)

			if tc.plainText != "" {
				assert.NotEqual(t, tc.plainText, encrypted)
			}

			decrypted, err := crypto.Decrypt(encrypted)
			assert.NoError(t, err)
			assert.Equal(t, tc.plainText, decrypted)
		})
	}
}

func TestCrypto_Decrypt_InvalidCiphertext(t *testing.T) {
	resetSingleton()
	config.SetValue("crypto.enable", "true")
	config.SetValue("auth.encryption_key", "super-secret-encryption-key")
	defer func() {
		config.SetValue("crypto.enable", "")
		config.SetValue("auth.encryption_key", "")
	}()

	crypto := NewCrypto()
	assert.NotNil(t, crypto)

	_, err := crypto.Decrypt("invalid-base64!@#")
	assert.Error(t, err)

	_, err = crypto.Decrypt("aGVsbG8gd29ybGQ=") // "hello world" in base64
	assert.Error(t, err)
}

// cbcEncrypt produces a CryptoJS-compatible passphrase payload:
// base64("Salted__" || salt || AES-256-CBC(pkcs7(plain))).
func cbcEncrypt(t *testing.T, plain, passphrase []byte) string {
	salt := make([]byte, 8)
	_, err := io.ReadFull(rand.Reader, salt)
	assert.NoError(t, err)

	key, iv := evpBytesToKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	assert.NoError(t, err)

	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	raw := append(append([]byte("Salted__"), salt...), out...)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecrypt_LegacyCBCPayload(t *testing.T) {
	passphrase := []byte("legacy-passphrase")
	plain := []byte("postgres://tenant:secret@db:5432/storage")

	ciphertext := cbcEncrypt(t, plain, passphrase)
	decrypted, err := Decrypt(ciphertext, passphrase)
	assert.NoError(t, err)
	assert.Equal(t, plain, decrypted)
}

func TestDecrypt_LegacyCBCRejectsCorruptPadding(t *testing.T) {
	passphrase := []byte("legacy-passphrase")
	ciphertext := cbcEncrypt(t, []byte("payload"), passphrase)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	assert.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = Decrypt(base64.StdEncoding.EncodeToString(raw), passphrase)
	assert.Error(t, err)
}

func TestCrypto_Singleton(t *testing.T) {
	resetSingleton()
	config.SetValue("crypto.enable", "false")
	defer config.SetValue("crypto.enable", "")

	crypto1 := NewCrypto()
	crypto2 := NewCrypto()

	assert.Same(t, crypto1, crypto2)
}
