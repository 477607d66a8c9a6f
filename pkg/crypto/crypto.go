/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package crypto

import (
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

// Crypto encrypts tenant records (database URLs, JWT secrets, credential
// secrets) at rest. The passphrase comes from AUTH_ENCRYPTION_KEY or the
// mounted crypto secret.
type Crypto struct {
	key string
}

// once - Ensures singleton instance creation
// instance - Singleton instance of Crypto
var (
	once     sync.Once
	instance *Crypto
)

// MinKeyLen - minimum accepted passphrase length
const (
	MinKeyLen = 16
)

// NewCrypto creates and returns a singleton instance of Crypto.
// It initializes the crypto key from configuration if crypto is enabled and validates key length requirements.
func NewCrypto() *Crypto {
	once.Do(func() {
		key := ""
		if config.IsCryptoEnable() {
			key = config.GetCryptoKey()
			if key == "" {
				klog.Errorf("failed to get encryption key for crypto")
				return
			} else if len(key) < MinKeyLen {
				klog.Errorf("invalid encryption key, the length must be at least %d", MinKeyLen)
				return
			}
		}
		instance = &Crypto{
			key: key,
		}
	})
	return instance
}

// Encrypt encrypts plaintext data using AES encryption.
// Returns the encrypted string or the original string if crypto is disabled.
// Returns an error if encryption fails or the key is missing.
func (c *Crypto) Encrypt(plainText []byte) (string, error) {
	if !config.IsCryptoEnable() {
		return string(plainText), nil
	}
	if c.key == "" {
		return "", fmt.Errorf("failed to get crypto key")
	}
	return Encrypt(plainText, []byte(c.key))
}

// Decrypt decrypts ciphertext data using AES decryption. Legacy CBC payloads
// are accepted transparently.
// Returns the decrypted string or the original string if crypto is disabled.
// Returns an error if decryption fails or the key is missing.
func (c *Crypto) Decrypt(ciphertext string) (string, error) {
	if !config.IsCryptoEnable() {
		return ciphertext, nil
	}
	if c.key == "" {
		return "", fmt.Errorf("failed to get crypto key")
	}
	data, err := Decrypt(ciphertext, []byte(c.key))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
