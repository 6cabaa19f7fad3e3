package container

// String8 is a length-prefixed byte string, spec.md §4.3's String8
// container. Go's native string is already length-prefixed and immutable;
// String8 wraps one so call sites that pass resource/pass names through
// the render graph and declarative descriptor have an explicit, copyable
// value type rather than depending on string directly everywhere.
type String8 struct {
	bytes []byte
}

// NewString8 copies s into a new String8.
func NewString8(s string) String8 {
	b := make([]byte, len(s))
	copy(b, s)
	return String8{bytes: b}
}

// Len returns the byte length.
func (s String8) Len() int { return len(s.bytes) }

// String returns the Go string view.
func (s String8) String() string { return string(s.bytes) }

// Equal compares two String8 values by content.
func (s String8) Equal(other String8) bool { return string(s.bytes) == string(other.bytes) }
