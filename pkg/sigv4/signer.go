/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package sigv4 implements AWS Signature Version 4 verification for the
// S3-wire surface: header-signed requests, presigned URLs, and the
// streaming chunked payload encoding.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

const (
	algorithmHeader = "AWS4-HMAC-SHA256"
	requestSuffix   = "aws4_request"
	timeFormat      = "20060102T150405Z"
	dateFormat      = "20060102"

	// payload declarations recognized on x-amz-content-sha256
	UnsignedPayload          = "UNSIGNED-PAYLOAD"
	StreamingUnsignedTrailer = "STREAMING-UNSIGNED-PAYLOAD-TRAILER"
	StreamingSignedPayload   = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
	StreamingSignedTrailer   = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD-TRAILER"

	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// IsStreamingAlgorithm reports whether the content-sha256 declaration names
// one of the chunked streaming encodings.
func IsStreamingAlgorithm(declaration string) bool {
	switch declaration {
	case StreamingUnsignedTrailer, StreamingSignedPayload, StreamingSignedTrailer:
		return true
	}
	return false
}

// Credential is the parsed scope of a signed request.
type Credential struct {
	AccessKey string
	Date      string
	Region    string
	Service   string
}

// Scope renders date/region/service/aws4_request.
func (c Credential) Scope() string {
	return strings.Join([]string{c.Date, c.Region, c.Service, requestSuffix}, "/")
}

// Authorization is a parsed SigV4 Authorization header or presigned query.
type Authorization struct {
	Credential    Credential
	SignedHeaders []string
	Signature     string
	AmzDate       string
	Presigned     bool
	Expires       time.Duration
}

// ParseAuthorization parses the Authorization header of a header-signed
// request.
func ParseAuthorization(r *http.Request) (*Authorization, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, storageerrors.NewAccessDenied("missing Authorization header")
	}
	if !strings.HasPrefix(header, algorithmHeader+" ") {
		return nil, storageerrors.NewInvalidSignature("unsupported signing algorithm")
	}
	auth := &Authorization{AmzDate: r.Header.Get("x-amz-date")}
	for _, field := range strings.Split(strings.TrimPrefix(header, algorithmHeader+" "), ",") {
		field = strings.TrimSpace(field)
		name, value, found := strings.Cut(field, "=")
		if !found {
			return nil, storageerrors.NewInvalidSignature("malformed Authorization header")
		}
		switch name {
		case "Credential":
			credential, err := parseCredential(value)
			if err != nil {
				return nil, err
			}
			auth.Credential = *credential
		case "SignedHeaders":
			auth.SignedHeaders = strings.Split(value, ";")
		case "Signature":
			auth.Signature = value
		}
	}
	if auth.Credential.AccessKey == "" || auth.Signature == "" || len(auth.SignedHeaders) == 0 {
		return nil, storageerrors.NewInvalidSignature("incomplete Authorization header")
	}
	return auth, nil
}

// ParsePresigned parses the SigV4 query parameters of a presigned URL.
func ParsePresigned(r *http.Request) (*Authorization, error) {
	query := r.URL.Query()
	if query.Get("X-Amz-Algorithm") != algorithmHeader {
		return nil, storageerrors.NewInvalidSignature("unsupported signing algorithm")
	}
	credential, err := parseCredential(query.Get("X-Amz-Credential"))
	if err != nil {
		return nil, err
	}
	expiresSecond, err := strconv.Atoi(query.Get("X-Amz-Expires"))
	if err != nil || expiresSecond <= 0 {
		return nil, storageerrors.NewInvalidSignature("invalid X-Amz-Expires")
	}
	auth := &Authorization{
		Credential:    *credential,
		SignedHeaders: strings.Split(query.Get("X-Amz-SignedHeaders"), ";"),
		Signature:     query.Get("X-Amz-Signature"),
		AmzDate:       query.Get("X-Amz-Date"),
		Presigned:     true,
		Expires:       time.Duration(expiresSecond) * time.Second,
	}
	if auth.Signature == "" || auth.AmzDate == "" {
		return nil, storageerrors.NewInvalidSignature("incomplete presigned query")
	}
	return auth, nil
}

func parseCredential(value string) (*Credential, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 5 || parts[4] != requestSuffix {
		return nil, storageerrors.NewInvalidSignature("malformed credential scope")
	}
	return &Credential{
		AccessKey: parts[0],
		Date:      parts[1],
		Region:    parts[2],
		Service:   parts[3],
	}, nil
}

// Verify checks the request signature against the secret resolved for the
// access key. It returns the seed signature for streaming bodies.
func Verify(r *http.Request, auth *Authorization, secretKey string) (string, error) {
	if auth.Presigned {
		if err := checkExpiry(auth); err != nil {
			return "", err
		}
	}
	payloadHash := r.Header.Get("x-amz-content-sha256")
	if payloadHash == "" || auth.Presigned {
		payloadHash = UnsignedPayload
	}
	canonical := canonicalRequest(r, auth, payloadHash)
	stringToSign := strings.Join([]string{
		algorithmHeader,
		auth.AmzDate,
		auth.Credential.Scope(),
		hashHex([]byte(canonical)),
	}, "\n")
	expected := hex.EncodeToString(hmacSHA256(signingKey(secretKey, auth.Credential), []byte(stringToSign)))
	if !hmac.Equal([]byte(expected), []byte(auth.Signature)) {
		return "", storageerrors.NewSignatureDoesNotMatch(
			"the request signature we calculated does not match the signature you provided")
	}
	return auth.Signature, nil
}

func checkExpiry(auth *Authorization) error {
	signedAt, err := time.Parse(timeFormat, auth.AmzDate)
	if err != nil {
		return storageerrors.NewInvalidSignature("invalid X-Amz-Date")
	}
	if time.Now().After(signedAt.Add(auth.Expires)) {
		return storageerrors.NewExpiredToken("the presigned URL has expired")
	}
	return nil
}

func canonicalRequest(r *http.Request, auth *Authorization, payloadHash string) string {
	return strings.Join([]string{
		r.Method,
		canonicalURI(r.URL),
		canonicalQuery(r.URL, auth.Presigned),
		canonicalHeaders(r, auth.SignedHeaders),
		strings.Join(auth.SignedHeaders, ";"),
		payloadHash,
	}, "\n")
}

func canonicalURI(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	return path
}

// canonicalQuery sorts and re-encodes the query; for presigned URLs the
// signature parameter itself is excluded.
func canonicalQuery(u *url.URL, presigned bool) string {
	values := u.Query()
	if presigned {
		values.Del("X-Amz-Signature")
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var pairs []string
	for _, key := range keys {
		entries := values[key]
		sort.Strings(entries)
		for _, value := range entries {
			pairs = append(pairs, uriEncode(key)+"="+uriEncode(value))
		}
	}
	return strings.Join(pairs, "&")
}

func canonicalHeaders(r *http.Request, signed []string) string {
	var b strings.Builder
	for _, name := range signed {
		value := r.Header.Get(name)
		if strings.EqualFold(name, "host") {
			value = r.Host
		}
		b.WriteString(strings.ToLower(name))
		b.WriteString(":")
		b.WriteString(strings.Join(strings.Fields(value), " "))
		b.WriteString("\n")
	}
	return b.String()
}

// uriEncode is the AWS variant of percent-encoding: unreserved characters
// pass through, space becomes %20, everything else is uppercase-hex.
func uriEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString("%")
			b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return b.String()
}

func signingKey(secretKey string, credential Credential) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(credential.Date))
	kRegion := hmacSHA256(kDate, []byte(credential.Region))
	kService := hmacSHA256(kRegion, []byte(credential.Service))
	return hmacSHA256(kService, []byte(requestSuffix))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
