package model

import (
	"fmt"
	"strconv"
	"strings"
)

// reservedChars may never appear in a key.
const reservedChars = ".#$[]/"

var reservedNames = map[string]bool{
	".key":      true,
	".value":    true,
	".priority": true,
	".sv":       true,
}

// InfoSegment is the reserved first path segment for client-side meta-state
// such as .info/connected and .info/authenticated. Paths under it are never
// sent to the server.
const InfoSegment = ".info"

// Key is a single path segment. Keys that parse as a non-negative 32-bit
// integer sort numerically before any string key; otherwise keys sort
// lexicographically.
type Key string

// IsInteger reports whether k parses as a non-negative 32-bit integer key.
func (k Key) IsInteger() (uint32, bool) {
	if k == "" {
		return 0, false
	}
	// Leading zeros (other than "0" itself) are not integer keys.
	if len(k) > 1 && k[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseUint(string(k), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// Less orders two keys per the Realtime Database key-ordering rule.
func (k Key) Less(other Key) bool {
	ki, kInt := k.IsInteger()
	oi, oInt := other.IsInteger()
	switch {
	case kInt && oInt:
		return ki < oi
	case kInt && !oInt:
		return true
	case !kInt && oInt:
		return false
	default:
		return string(k) < string(other)
	}
}

// ValidateKey checks a key against the reserved-character and reserved-name
// rules. An empty key is invalid except as the root-path sentinel, which
// callers represent with an empty Path rather than an empty Key.
func ValidateKey(k Key) error {
	if k == "" {
		return fmt.Errorf("invalid key: empty")
	}
	if strings.ContainsAny(string(k), reservedChars) {
		return fmt.Errorf("invalid key %q: contains reserved character", k)
	}
	if reservedNames[string(k)] {
		return fmt.Errorf("invalid key %q: reserved name", k)
	}
	return nil
}

// Path is an ordered sequence of keys addressing a location in the tree.
type Path struct {
	segments []Key
}

// RootPath returns the empty path.
func RootPath() Path {
	return Path{}
}

// NewPath parses a slash-separated path string into segments, skipping
// repeated or leading/trailing slashes.
func NewPath(s string) (Path, error) {
	var segs []Key
	for _, part := range strings.Split(s, "/") {
		if part == "" {
			continue
		}
		k := Key(part)
		if len(segs) == 0 && k == InfoSegment {
			segs = append(segs, k)
			continue
		}
		if err := ValidateKey(k); err != nil {
			return Path{}, err
		}
		segs = append(segs, k)
	}
	return Path{segments: segs}, nil
}

// MustPath is NewPath but panics on error; intended for constants and tests.
func MustPath(s string) Path {
	p, err := NewPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PathFromKeys builds a Path directly from already-validated keys.
func PathFromKeys(keys ...Key) Path {
	out := make([]Key, len(keys))
	copy(out, keys)
	return Path{segments: out}
}

// IsEmpty reports whether the path is the root.
func (p Path) IsEmpty() bool { return len(p.segments) == 0 }

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// Front returns the first segment and a path holding the rest. Calling Front
// on an empty path returns an empty key and the same empty path.
func (p Path) Front() (Key, Path) {
	if p.IsEmpty() {
		return "", p
	}
	return p.segments[0], Path{segments: p.segments[1:]}
}

// Back returns the last segment and the path holding everything before it.
func (p Path) Back() (Key, Path) {
	if p.IsEmpty() {
		return "", p
	}
	last := len(p.segments) - 1
	return p.segments[last], Path{segments: p.segments[:last]}
}

// Child returns the path extended by one key.
func (p Path) Child(k Key) Path {
	segs := make([]Key, len(p.segments)+1)
	copy(segs, p.segments)
	segs[len(p.segments)] = k
	return Path{segments: segs}
}

// Append returns the path extended by another path's segments.
func (p Path) Append(other Path) Path {
	segs := make([]Key, 0, len(p.segments)+len(other.segments))
	segs = append(segs, p.segments...)
	segs = append(segs, other.segments...)
	return Path{segments: segs}
}

// Parent returns the path without its last segment. Parent of the root is
// the root.
func (p Path) Parent() Path {
	_, parent := p.Back()
	return parent
}

// Contains reports whether other is equal to or a descendant of p.
func (p Path) Contains(other Path) bool {
	if len(other.segments) < len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// RelativeTo returns the suffix of p beyond ancestor. Callers must ensure
// ancestor.Contains(p).
func (p Path) RelativeTo(ancestor Path) Path {
	return Path{segments: append([]Key(nil), p.segments[len(ancestor.segments):]...)}
}

// Equal reports structural equality.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i, seg := range p.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// IsInfo reports whether the path lives under the reserved .info segment.
func (p Path) IsInfo() bool {
	return len(p.segments) > 0 && p.segments[0] == InfoSegment
}

// String renders the path in slash-separated form, "/" for the root.
func (p Path) String() string {
	if p.IsEmpty() {
		return "/"
	}
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = string(s)
	}
	return "/" + strings.Join(parts, "/")
}

// Keys returns a copy of the path's segments.
func (p Path) Keys() []Key {
	return append([]Key(nil), p.segments...)
}
