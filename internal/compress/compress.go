// Package compress provides LZ4 block compression for cached prompt and
// response text.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/lz4"

	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

// Compress LZ4-encodes p. Empty input returns empty output.
func Compress(p []byte) []byte {
	if len(p) == 0 {
		return []byte{}
	}

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	// Close flushes everything written, so the returned bytes decode on
	// their own; Decompress does not need originalSize to read them back.
	_, _ = w.Write(p)
	_ = w.Close()

	return buf.Bytes()
}

// Decompress LZ4-decodes p. originalSize is an optional sizing hint for
// the output buffer — it is never load-bearing for correctness, per
// spec. A truncated or non-LZ4 input returns a CorruptedPayload error.
func Decompress(p []byte, originalSize int) ([]byte, error) {
	if len(p) == 0 {
		return []byte{}, nil
	}

	r := lz4.NewReader(bytes.NewReader(p))

	var out bytes.Buffer
	if originalSize > 0 {
		out.Grow(originalSize)
	}

	if _, err := io.Copy(&out, r); err != nil {
		return nil, cerrors.NewCorruptedPayload("lz4 decompression failed", err)
	}

	return out.Bytes(), nil
}
