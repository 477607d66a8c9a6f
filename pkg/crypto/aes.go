/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// legacy CryptoJS payloads start with the OpenSSL salt header
var saltedPrefix = []byte("Salted__")

func deriveKey(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

// Encrypt seals plainText with AES-256-GCM under a key derived from the
// passphrase and returns base64(nonce || ciphertext).
func Encrypt(plainText, key []byte) (string, error) {
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plainText, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt. Payloads carrying the
// OpenSSL "Salted__" header are routed to the legacy CBC scheme instead.
func Decrypt(ciphertext string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(raw, saltedPrefix) {
		return decryptLegacyCBC(raw, key)
	}
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

// decryptLegacyCBC opens an AES-256-CBC payload in the CryptoJS passphrase
// format: "Salted__" || 8-byte salt || ciphertext, with the key and IV
// derived through the OpenSSL EVP_BytesToKey schedule (MD5, one round).
func decryptLegacyCBC(raw, passphrase []byte) ([]byte, error) {
	if len(raw) < len(saltedPrefix)+8+aes.BlockSize {
		return nil, fmt.Errorf("legacy ciphertext too short")
	}
	salt := raw[len(saltedPrefix) : len(saltedPrefix)+8]
	data := raw[len(saltedPrefix)+8:]
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("legacy ciphertext is not block aligned")
	}
	key, iv := evpBytesToKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)
	return pkcs7Unpad(plain)
}

// evpBytesToKey derives a 32-byte key and 16-byte IV from the passphrase and
// salt the way OpenSSL's EVP_BytesToKey does with MD5 and a single round.
func evpBytesToKey(passphrase, salt []byte) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < 48 {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:32], derived[32:48]
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
