// Package codec implements the canonical serialization and conditional
// compression applied to values before they reach a networked tier.
//
// Every value passes through canonical JSON first, so stored bytes always
// begin either with the compression marker or with JSON text; the marker
// cannot collide with a payload. Compression is a storage-only
// transformation, transparent to callers: size accounting always refers to
// the uncompressed canonical form.
package codec

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/klauspost/compress/zstd"

	cacheerr "github.com/stratacache/stratacache/pkg/errors"
)

// marker prefixes compressed payloads so a read knows to decompress.
// JSON output can never start with these bytes.
var marker = []byte("ZSC1")

const (
	// DefaultThresholdBytes is the minimum canonical size before
	// compression is attempted.
	DefaultThresholdBytes = 1024

	// DefaultRatioTarget is the maximum compressed/uncompressed ratio for
	// the compressed form to be kept.
	DefaultRatioTarget = 0.7
)

// Codec packs canonical JSON bytes for storage and unpacks stored bytes
// back. A zero threshold means "always attempt compression" (the
// high-capacity tier policy); the ratio target still applies.
type Codec struct {
	ThresholdBytes int
	RatioTarget    float64

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a Codec with the given compression policy.
func New(thresholdBytes int, ratioTarget float64) *Codec {
	if ratioTarget <= 0 || ratioTarget > 1 {
		ratioTarget = DefaultRatioTarget
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	dec, _ := zstd.NewReader(nil)
	return &Codec{
		ThresholdBytes: thresholdBytes,
		RatioTarget:    ratioTarget,
		enc:            enc,
		dec:            dec,
	}
}

// NewDefault creates a Codec with the standard distributed-tier policy.
func NewDefault() *Codec {
	return New(DefaultThresholdBytes, DefaultRatioTarget)
}

// NewAlwaysCompress creates a Codec with the high-capacity-tier policy:
// every payload is compressed regardless of size, kept whenever the
// compressed form is no larger than the original.
func NewAlwaysCompress() *Codec {
	return New(0, 1.0)
}

// NewPassthrough creates a Codec that never compresses. Reads still honor
// the marker so mixed histories decode correctly.
func NewPassthrough() *Codec {
	return New(math.MaxInt, 1.0)
}

// Marshal produces the canonical serialized form of a value. The length of
// the result is the entry's size_bytes.
func Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, cacheerr.New(cacheerr.CodeSerialization, "value is not serializable").WithCause(err)
	}
	return b, nil
}

// Unmarshal decodes canonical bytes into a value.
func Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return cacheerr.New(cacheerr.CodeSerialization, "stored bytes are not canonical form").WithCause(err)
	}
	return nil
}

// Pack returns the bytes to store for a canonical payload, compressed when
// the payload exceeds the threshold and compression meets the ratio target.
// The returned ratio is compressed/uncompressed when compression was
// applied, 1.0 otherwise.
func (c *Codec) Pack(plain []byte) ([]byte, float64) {
	if len(plain) == 0 || len(plain) <= c.ThresholdBytes {
		return plain, 1.0
	}

	compressed := c.enc.EncodeAll(plain, make([]byte, 0, len(marker)+len(plain)/2))
	ratio := float64(len(compressed)) / float64(len(plain))
	if ratio > c.RatioTarget {
		// Not worth storing compressed.
		return plain, 1.0
	}

	out := make([]byte, 0, len(marker)+len(compressed))
	out = append(out, marker...)
	out = append(out, compressed...)
	return out, ratio
}

// Unpack restores the canonical payload from stored bytes, decompressing
// when the marker prefix is present.
func (c *Codec) Unpack(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, marker) {
		return stored, nil
	}

	plain, err := c.dec.DecodeAll(stored[len(marker):], nil)
	if err != nil {
		return nil, cacheerr.New(cacheerr.CodeSerialization, "compressed payload is corrupt").WithCause(err)
	}
	return plain, nil
}
