/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package stringutil

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	Base64 string = "^(?:[A-Za-z0-9+\\/]{4})*(?:[A-Za-z0-9+\\/]{2}==|[A-Za-z0-9+\\/]{3}=|[A-Za-z0-9+\\/]{4})$"
)

var (
	rxBase64 = regexp.MustCompile(Base64)
)

// Base64Encode encodes a string to base64 format.
func Base64Encode(inputString string) string {
	if inputString == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(inputString))
}

// Base64Decode decodes a base64 encoded string, returns empty string if decode fails.
func Base64Decode(inputString string) string {
	if inputString == "" {
		return ""
	}
	decodedBytes, err := base64.StdEncoding.DecodeString(inputString)
	if err != nil {
		return ""
	}
	return string(decodedBytes)
}

// IsBase64 check if a string is base64 encoded.
func IsBase64(str string) bool {
	return rxBase64.MatchString(str)
}

// MD5 generates MD5 hash of the input string and returns it as hex string.
func MD5(input string) string {
	data := []byte(input)

	hash := md5.New()
	hash.Write(data)
	hashInBytes := hash.Sum(nil)

	md5String := hex.EncodeToString(hashInBytes)
	return md5String
}

// Split splits a string by the given separator and trims whitespace from each part.
func Split(str, sep string) []string {
	if len(str) == 0 {
		return nil
	}
	strList := strings.Split(str, sep)
	var result []string
	for _, s := range strList {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		result = append(result, s)
	}
	return result
}

// StrCaseEqual compares two strings case-insensitively.
func StrCaseEqual(str1, str2 string) bool {
	return strings.EqualFold(str1, str2)
}
