// Package checksum fingerprints task files. The digest doubles as the ETag
// the API hands out and the If-Match precondition writers send back.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag formats sum as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether the precondition want holds for data. An empty
// want always holds; quotes and a weak "W/" prefix are ignored.
func Matches(data []byte, want string) bool {
	want = strings.TrimPrefix(strings.TrimSpace(want), "W/")
	want = strings.Trim(want, `"`)
	return want == "" || want == "*" || want == Sum(data)
}
