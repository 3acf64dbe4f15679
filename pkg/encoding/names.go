// Package encoding decodes the legacy text stored in model and animation files.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Windows1252ToUTF8 converts Windows-1252 bytes to a UTF-8 string.
// Returns the bytes as-is if conversion fails.
func Windows1252ToUTF8(data []byte) string {
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// UTF8ToWindows1252 encodes s as Windows-1252, replacing unmappable runes.
func UTF8ToWindows1252(s string) []byte {
	enc := charmap.Windows1252.NewEncoder()
	result, _, err := transform.Bytes(enc, []byte(s))
	if err != nil {
		// Characters outside the code page: keep the ASCII subset.
		return []byte(strings.Map(func(r rune) rune {
			if r < 0x80 {
				return r
			}
			return '?'
		}, s))
	}
	return result
}

// FixedString decodes a fixed-size, null-terminated name field.
func FixedString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return Windows1252ToUTF8(data)
}

// PutFixedString encodes s into a null-padded field of the given size.
// Names longer than size-1 bytes are truncated.
func PutFixedString(s string, size int) []byte {
	out := make([]byte, size)
	enc := UTF8ToWindows1252(s)
	if len(enc) > size-1 {
		enc = enc[:size-1]
	}
	copy(out, enc)
	return out
}

// NormalizePath normalizes a resource path: forward slashes, lower case.
func NormalizePath(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
}
