package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// SanitizeKey makes a key safe for use as a filename.
// For security, keys containing path traversal patterns are hashed.
func SanitizeKey(key string) string {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) ||
		strings.Contains(key, string(filepath.Separator)) {
		h := sha256.Sum256([]byte(key))
		return hex.EncodeToString(h[:])
	}

	// '.' is excluded to prevent hidden files and traversal
	result := make([]byte, len(key))
	for i, c := range []byte(key) {
		if IsSafeIDByte(c) {
			result[i] = c
		} else {
			result[i] = '_'
		}
	}
	return string(result)
}

// IsSafeID reports whether id can be used verbatim as a single path component.
func IsSafeID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, c := range []byte(id) {
		if !IsSafeIDByte(c) {
			return false
		}
	}
	return true
}

// IsSafeIDByte reports whether c is allowed in a filesystem-safe id.
func IsSafeIDByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c == '_' || c == '-'
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ContainsAny checks if s contains any of the substrings (case-insensitive).
func ContainsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if ContainsFold(s, sub) {
			return true
		}
	}
	return false
}
