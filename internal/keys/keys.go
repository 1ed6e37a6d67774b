// Package keys provides the string form of partition and sort keys.
package keys

import (
	"errors"
	"strings"
)

// Separator splits a key prefix from its natural key.
const Separator = "#"

// ErrMalformed is returned when an encoded key has no prefix or no natural key.
var ErrMalformed = errors.New("malformed key")

// Join computes the encoded key for a natural key under a prefix.
// Join("P", "9278693472") == "P#9278693472".
func Join(prefix, natural string) string {
	return prefix + Separator + natural
}

// Split reverses Join. The natural key may itself contain the separator;
// only the first occurrence is significant.
func Split(encoded string) (prefix, natural string, err error) {
	prefix, natural, ok := strings.Cut(encoded, Separator)
	if !ok || prefix == "" || natural == "" {
		return "", "", ErrMalformed
	}
	return prefix, natural, nil
}

// HasPrefix reports whether encoded was produced by Join with the given prefix.
func HasPrefix(encoded, prefix string) bool {
	p, _, err := Split(encoded)
	return err == nil && p == prefix
}

// KebabCase converts a Go type name into the table naming convention
// ("DocumentPointer" -> "document-pointer").
func KebabCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
