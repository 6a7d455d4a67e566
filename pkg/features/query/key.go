package query

import (
	"strconv"
	"strings"
)

// Key identifies a cached resource as an ordered tuple, e.g.
// Key{"comments", "discussion-1"}.
type Key []string

// NewKey creates a Key from its parts.
func NewKey(parts ...string) Key {
	return Key(parts)
}

// String returns a stable, unambiguous encoding of the key.
func (k Key) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(p))
	}
	b.WriteByte(']')
	return b.String()
}

// Equal reports whether k and other have the same parts.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix matches the leading parts of k.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	return k[:len(prefix)].Equal(prefix)
}

func (k Key) clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}
