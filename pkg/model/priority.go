package model

// Priority orders sibling children independently of key order. A zero-value
// Priority (PriorityKindNull) is the lowest priority.
type Priority struct {
	kind PriorityKind
	num  float64
	str  string
}

// PriorityKind discriminates the priority variants.
type PriorityKind uint8

const (
	PriorityNull PriorityKind = iota
	PriorityNumber
	PriorityString
)

// NullPriority is the absent/lowest priority.
func NullPriority() Priority { return Priority{kind: PriorityNull} }

// NumberPriority builds a numeric priority.
func NumberPriority(n float64) Priority { return Priority{kind: PriorityNumber, num: n} }

// StringPriority builds a string priority.
func StringPriority(s string) Priority { return Priority{kind: PriorityString, str: s} }

// Kind returns the priority's discriminant.
func (p Priority) Kind() PriorityKind { return p.kind }

// IsNull reports whether this is the null priority.
func (p Priority) IsNull() bool { return p.kind == PriorityNull }

// Number returns the numeric value; valid only when Kind() == PriorityNumber.
func (p Priority) Number() float64 { return p.num }

// Str returns the string value; valid only when Kind() == PriorityString.
func (p Priority) Str() string { return p.str }

// Less orders priorities: null < numbers < strings; numbers compare
// numerically, strings lexicographically.
func (p Priority) Less(other Priority) bool {
	if p.kind != other.kind {
		return p.kind < other.kind
	}
	switch p.kind {
	case PriorityNumber:
		return p.num < other.num
	case PriorityString:
		return p.str < other.str
	default:
		return false
	}
}

// Equal reports value equality.
func (p Priority) Equal(other Priority) bool {
	if p.kind != other.kind {
		return false
	}
	switch p.kind {
	case PriorityNumber:
		return p.num == other.num
	case PriorityString:
		return p.str == other.str
	default:
		return true
	}
}

// Wire returns the JSON-ready representation of the priority: nil, a
// float64, or a string.
func (p Priority) Wire() interface{} {
	switch p.kind {
	case PriorityNumber:
		return p.num
	case PriorityString:
		return p.str
	default:
		return nil
	}
}

// PriorityFromWire converts a decoded JSON value into a Priority.
func PriorityFromWire(v interface{}) Priority {
	switch val := v.(type) {
	case float64:
		return NumberPriority(val)
	case string:
		return StringPriority(val)
	default:
		return NullPriority()
	}
}
