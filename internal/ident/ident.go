// Package ident generates and validates request identifiers.
//
// Generated identifiers are CUIDs: 25 characters, always starting with 'c',
// safe to create on any host without coordination. Client-supplied values are
// accepted when they look like a CUID or a random (version 4) UUID.
package ident

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lucsky/cuid"
)

const (
	// CUIDLength is the exact length of a CUID
	CUIDLength = 25
	// CUIDPrefix is the leading character of every CUID
	CUIDPrefix = "c"
)

// New returns a fresh collision-resistant identifier
func New() string {
	return cuid.New()
}

// IsValid reports whether s is an accepted identifier shape:
// a CUID (length 25, case-insensitive 'c' prefix) or a version 4 UUID.
func IsValid(s string) bool {
	if IsCUID(s) {
		return true
	}
	return IsUUIDv4(s)
}

// IsCUID reports whether s has the shape of a CUID.
// Only the length in bytes and the prefix are checked.
func IsCUID(s string) bool {
	return len(s) == CUIDLength && strings.HasPrefix(strings.ToLower(s), CUIDPrefix)
}

// IsUUIDv4 reports whether s parses as a UUID of version 4
func IsUUIDv4(s string) bool {
	if s == "" {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4
}

// Truncate returns at most n leading bytes of s.
// Header values are octets, so the result is always a prefix of s even when
// the cut splits a multibyte sequence. A non-positive n returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
