// Package normalize canonicalizes prompt text and derives the 16-hex-char
// fingerprint used for exact-match cache lookups.
package normalize

import (
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Normalize lowercases text, trims leading/trailing whitespace, and
// collapses every maximal run of whitespace to a single space. Empty
// input yields the empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(text))

	inRun := true // swallow leading whitespace
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !inRun {
				sb.WriteByte(' ')
				inRun = true
			}
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
		inRun = false
	}

	return strings.TrimRight(sb.String(), " ")
}

// Fingerprint hashes the UTF-8 bytes of a normalized prompt with a 64-bit
// non-cryptographic hash seeded with an all-zero 8-byte seed, and renders
// the result as a 16-character lowercase hex string without leading-zero
// suppression. If alreadyNormalized is false, text is normalized first.
func Fingerprint(text string, alreadyNormalized bool) string {
	if !alreadyNormalized {
		text = Normalize(text)
	}

	// xxhash.Sum64String hashes with the algorithm's fixed seed, which is
	// the all-zero 8-byte seed.
	sum := xxhash.Sum64String(text)

	return toHex16(sum)
}

const hexDigits = "0123456789abcdef"

// toHex16 renders v as exactly 16 lowercase hex characters, zero-padded.
func toHex16(v uint64) string {
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}
