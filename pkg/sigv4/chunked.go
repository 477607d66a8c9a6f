/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package sigv4

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// maxHeaderSize bounds one chunk header line on the wire.
const maxHeaderSize = 128

// Parser states.
const (
	stateHeader = iota
	stateData
	stateFooter
	stateTrailer
	stateDone
)

// ChunkSignatureEvent carries everything needed to check one chunk against
// the SigV4 chaining rule.
type ChunkSignatureEvent struct {
	Signature         string
	Size              int64
	PayloadHash       string
	PreviousSignature string
}

// ChunkReader decodes an S3 SigV4 streaming body and yields the verified
// payload bytes. It consumes whole chunks as the caller reads and never
// buffers past the current chunk boundary, so backpressure propagates to
// the socket. A signature mismatch poisons the reader permanently.
type ChunkReader struct {
	src              *bufio.Reader
	signed           bool
	hasTrailer       bool
	maxChunkSize     int64
	expectedTrailers []string

	auth      *Authorization
	secretKey string

	state             int
	remaining         int64
	chunkSize         int64
	chunkSignature    string
	previousSignature string
	hasher            hash.Hash
	trailerHeaders    http.Header
	err               error
}

// NewChunkReader wraps the request body for the declared streaming
// algorithm. seedSignature is the request signature the chunk chain starts
// from; it is empty for the unsigned-trailer variant.
func NewChunkReader(body io.Reader, algorithm, seedSignature string, auth *Authorization, secretKey string, expectedTrailers []string) (*ChunkReader, error) {
	if !IsStreamingAlgorithm(algorithm) {
		return nil, storageerrors.NewInvalidParameter("unsupported streaming algorithm " + algorithm)
	}
	return &ChunkReader{
		src:               bufio.NewReader(body),
		signed:            algorithm != StreamingUnsignedTrailer,
		hasTrailer:        strings.HasSuffix(algorithm, "-TRAILER"),
		maxChunkSize:      config.GetSigv4MaxChunkSize(),
		expectedTrailers:  expectedTrailers,
		auth:              auth,
		secretKey:         secretKey,
		previousSignature: seedSignature,
		hasher:            sha256.New(),
		trailerHeaders:    http.Header{},
	}, nil
}

// TrailerHeaders returns the collected trailer headers after EOF.
func (c *ChunkReader) TrailerHeaders() http.Header {
	return c.trailerHeaders
}

func (c *ChunkReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	for {
		switch c.state {
		case stateHeader:
			if err := c.readHeader(); err != nil {
				return 0, c.fail(err)
			}
			if c.chunkSize == 0 {
				if err := c.finishChunk(); err != nil {
					return 0, c.fail(err)
				}
				if c.hasTrailer {
					c.state = stateTrailer
				} else {
					if err := c.expectCRLF(); err != nil {
						return 0, c.fail(err)
					}
					c.state = stateDone
				}
				continue
			}
			c.remaining = c.chunkSize
			c.state = stateData

		case stateData:
			if c.remaining == 0 {
				c.state = stateFooter
				continue
			}
			limit := int64(len(p))
			if limit > c.remaining {
				limit = c.remaining
			}
			n, err := c.src.Read(p[:limit])
			if n > 0 {
				c.hasher.Write(p[:n])
				c.remaining -= int64(n)
			}
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return n, c.fail(err)
			}
			return n, nil

		case stateFooter:
			if err := c.expectCRLF(); err != nil {
				return 0, c.fail(err)
			}
			if err := c.finishChunk(); err != nil {
				return 0, c.fail(err)
			}
			c.state = stateHeader

		case stateTrailer:
			if err := c.readTrailer(); err != nil {
				return 0, c.fail(err)
			}
			c.state = stateDone

		case stateDone:
			return 0, io.EOF
		}
	}
}

func (c *ChunkReader) fail(err error) error {
	c.err = err
	return err
}

// readHeader parses `<hex-size>[;chunk-signature=<64 hex>]\r\n`, bounded at
// maxHeaderSize bytes.
func (c *ChunkReader) readHeader() error {
	line, err := c.readLine(maxHeaderSize)
	if err != nil {
		return err
	}
	sizeField, signatureField, hasSignature := strings.Cut(line, ";")
	size, err := strconv.ParseInt(sizeField, 16, 64)
	if err != nil || size < 0 {
		return storageerrors.NewInvalidParameter("malformed chunk size " + sizeField)
	}
	if c.maxChunkSize > 0 && size > c.maxChunkSize {
		return storageerrors.NewInvalidParameter(
			"chunk size " + sizeField + " exceeds the allowed maximum")
	}
	c.chunkSize = size
	c.chunkSignature = ""
	if c.signed {
		value, found := strings.CutPrefix(signatureField, "chunk-signature=")
		if !hasSignature || !found || len(value) != 64 {
			return storageerrors.NewInvalidUploadSignature("missing or malformed chunk signature")
		}
		c.chunkSignature = value
	}
	return nil
}

// finishChunk verifies the completed chunk's signature and resets the
// running hash for the next one.
func (c *ChunkReader) finishChunk() error {
	payloadHash := hex.EncodeToString(c.hasher.Sum(nil))
	c.hasher.Reset()
	if !c.signed {
		return nil
	}
	event := &ChunkSignatureEvent{
		Signature:         c.chunkSignature,
		Size:              c.chunkSize,
		PayloadHash:       payloadHash,
		PreviousSignature: c.previousSignature,
	}
	if err := c.verifyChunk(event); err != nil {
		return err
	}
	c.previousSignature = c.chunkSignature
	return nil
}

// verifyChunk checks the chaining rule: each chunk signs its own payload
// hash together with the previous signature.
func (c *ChunkReader) verifyChunk(event *ChunkSignatureEvent) error {
	stringToSign := strings.Join([]string{
		algorithmHeader + "-PAYLOAD",
		c.auth.AmzDate,
		c.auth.Credential.Scope(),
		event.PreviousSignature,
		emptyPayloadHash,
		event.PayloadHash,
	}, "\n")
	expected := hex.EncodeToString(hmacSHA256(signingKey(c.secretKey, c.auth.Credential), []byte(stringToSign)))
	if !hmac.Equal([]byte(expected), []byte(event.Signature)) {
		return storageerrors.NewInvalidUploadSignature("chunk signature verification failed")
	}
	return nil
}

// readTrailer collects the trailer headers named by x-amz-trailer and, for
// the signed variant, verifies the trailer signature.
func (c *ChunkReader) readTrailer() error {
	trailerSignature := ""
	var collected []string
	for {
		line, err := c.readLine(4096)
		if err != nil {
			return err
		}
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return storageerrors.NewInvalidParameter("malformed trailer line")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "x-amz-trailer-signature" {
			trailerSignature = value
			continue
		}
		if !c.trailerExpected(name) {
			return storageerrors.NewInvalidParameter("unexpected trailer header " + name)
		}
		c.trailerHeaders.Set(textproto.CanonicalMIMEHeaderKey(name), value)
		collected = append(collected, name+":"+value+"\n")
	}
	if c.signed {
		if trailerSignature == "" {
			return storageerrors.NewInvalidUploadSignature("missing trailer signature")
		}
		stringToSign := strings.Join([]string{
			algorithmHeader + "-TRAILER",
			c.auth.AmzDate,
			c.auth.Credential.Scope(),
			c.previousSignature,
			hashHex([]byte(strings.Join(collected, ""))),
		}, "\n")
		expected := hex.EncodeToString(hmacSHA256(signingKey(c.secretKey, c.auth.Credential), []byte(stringToSign)))
		if !hmac.Equal([]byte(expected), []byte(trailerSignature)) {
			return storageerrors.NewInvalidUploadSignature("trailer signature verification failed")
		}
	}
	// drain the closing CRLF if the client sent one
	_ = c.drainCRLF()
	return nil
}

func (c *ChunkReader) trailerExpected(name string) bool {
	if len(c.expectedTrailers) == 0 {
		return true
	}
	for _, expected := range c.expectedTrailers {
		if strings.EqualFold(expected, name) {
			return true
		}
	}
	return false
}

// readLine reads one CRLF-terminated line of at most limit bytes.
func (c *ChunkReader) readLine(limit int) (string, error) {
	var b strings.Builder
	for {
		ch, err := c.src.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		if ch == '\r' {
			next, err := c.src.ReadByte()
			if err != nil {
				return "", io.ErrUnexpectedEOF
			}
			if next != '\n' {
				return "", storageerrors.NewInvalidParameter("malformed chunk framing")
			}
			return b.String(), nil
		}
		if b.Len() >= limit {
			return "", storageerrors.NewInvalidParameter("chunk header exceeds the size limit")
		}
		b.WriteByte(ch)
	}
}

func (c *ChunkReader) expectCRLF() error {
	line, err := c.readLine(2)
	if err != nil {
		return err
	}
	if line != "" {
		return storageerrors.NewInvalidParameter("malformed chunk framing")
	}
	return nil
}

func (c *ChunkReader) drainCRLF() error {
	for {
		ch, err := c.src.ReadByte()
		if err != nil {
			return nil
		}
		if ch != '\r' && ch != '\n' {
			return nil
		}
	}
}
