package model

import "sort"

// LeafKind discriminates the scalar variants a leaf Node may hold.
type LeafKind uint8

const (
	LeafNull LeafKind = iota
	LeafBoolean
	LeafNumber
	LeafString
	LeafServerValue // unresolved {".sv": "timestamp"} placeholder
)

// ServerValuePlaceholder identifies the kind of server-resolved value a
// LeafServerValue node stands in for until the write is acked.
type ServerValuePlaceholder string

const ServerValueTimestamp ServerValuePlaceholder = "timestamp"

// Node is the recursive sum type over the tree: either a Leaf scalar or a
// Children map, each carrying an optional Priority. The zero Node is the
// canonical null/absent node.
type Node struct {
	isChildren bool
	priority   Priority

	leafKind LeafKind
	boolVal  bool
	numVal   float64
	strVal   string
	svKind   ServerValuePlaceholder

	children *orderedChildren
}

// Null is the canonical absent/null node.
func Null() Node { return Node{} }

// IsNull reports whether the node is an absent leaf (null, not children).
func (n Node) IsNull() bool {
	return !n.isChildren && n.leafKind == LeafNull
}

// IsLeaf reports whether the node is a scalar (including null).
func (n Node) IsLeaf() bool { return !n.isChildren }

// IsChildren reports whether the node holds children.
func (n Node) IsChildren() bool { return n.isChildren }

// LeafKind returns the scalar discriminant; meaningful only when IsLeaf().
func (n Node) LeafKind() LeafKind { return n.leafKind }

func BoolNode(v bool) Node       { return Node{leafKind: LeafBoolean, boolVal: v} }
func NumberNode(v float64) Node  { return Node{leafKind: LeafNumber, numVal: v} }
func StringNode(v string) Node   { return Node{leafKind: LeafString, strVal: v} }

func ServerValueNode(kind ServerValuePlaceholder) Node {
	return Node{leafKind: LeafServerValue, svKind: kind}
}

func (n Node) Bool() bool                              { return n.boolVal }
func (n Node) Number() float64                         { return n.numVal }
func (n Node) Str() string                             { return n.strVal }
func (n Node) ServerValueKind() ServerValuePlaceholder { return n.svKind }

// Priority returns the node's priority (NullPriority if unset).
func (n Node) Priority() Priority { return n.priority }

// WithPriority returns a copy of n carrying the given priority.
func (n Node) WithPriority(p Priority) Node {
	n.priority = p
	return n
}

// ChildrenNode builds a children node from key/Node pairs.
func ChildrenNode(pairs map[Key]Node) Node {
	oc := newOrderedChildren()
	for k, v := range pairs {
		if v.IsNull() {
			continue
		}
		oc.set(k, v)
	}
	if oc.len() == 0 {
		return Null()
	}
	return Node{isChildren: true, children: oc}
}

// NumChildren returns the number of live children; zero for leaves.
func (n Node) NumChildren() int {
	if !n.isChildren || n.children == nil {
		return 0
	}
	return n.children.len()
}

// GetChild returns the child at key k, or Null() if absent.
func (n Node) GetChild(k Key) Node {
	if !n.isChildren || n.children == nil {
		return Null()
	}
	if v, ok := n.children.get(k); ok {
		return v
	}
	return Null()
}

// GetPath walks a Path of keys and returns the node found, or Null().
func (n Node) GetPath(p Path) Node {
	cur := n
	for _, k := range p.Keys() {
		cur = cur.GetChild(k)
	}
	return cur
}

// UpdateChild returns a new node with key k set to child (or removed, if
// child is null). A children node that drops to zero live children becomes
// Null(), collapsing per the data-model invariant.
func (n Node) UpdateChild(k Key, child Node) Node {
	oc := newOrderedChildren()
	if n.isChildren && n.children != nil {
		oc.copyFrom(n.children)
	}
	if child.IsNull() {
		oc.remove(k)
	} else {
		oc.set(k, child)
	}
	if oc.len() == 0 {
		return Node{priority: n.priority}
	}
	return Node{isChildren: true, children: oc, priority: n.priority}
}

// UpdatePath sets the node at the end of p to child, rebuilding every
// ancestor along the way, and returns the new root node.
func (n Node) UpdatePath(p Path, child Node) Node {
	if p.IsEmpty() {
		return child.WithPriority(n.priority)
	}
	head, rest := p.Front()
	existingChild := n.GetChild(head)
	updatedChild := existingChild.UpdatePath(rest, child)
	return n.UpdateChild(head, updatedChild)
}

// ForEach calls fn for each child in ascending key order. Iteration stops
// early if fn returns false.
func (n Node) ForEach(fn func(k Key, v Node) bool) {
	if !n.isChildren || n.children == nil {
		return
	}
	for _, e := range n.children.entries {
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Keys returns the child keys in ascending key order.
func (n Node) Keys() []Key {
	if !n.isChildren || n.children == nil {
		return nil
	}
	out := make([]Key, len(n.children.entries))
	for i, e := range n.children.entries {
		out[i] = e.key
	}
	return out
}

// Equal reports deep structural equality, including priorities.
func (n Node) Equal(other Node) bool {
	if n.isChildren != other.isChildren {
		return false
	}
	if !n.priority.Equal(other.priority) {
		return false
	}
	if !n.isChildren {
		if n.leafKind != other.leafKind {
			return false
		}
		switch n.leafKind {
		case LeafBoolean:
			return n.boolVal == other.boolVal
		case LeafNumber:
			return n.numVal == other.numVal
		case LeafString:
			return n.strVal == other.strVal
		case LeafServerValue:
			return n.svKind == other.svKind
		default:
			return true
		}
	}
	if n.NumChildren() != other.NumChildren() {
		return false
	}
	for _, e := range n.children.entries {
		ov, ok := other.children.get(e.key)
		if !ok || !e.value.Equal(ov) {
			return false
		}
	}
	return true
}

// Wire renders the node into a plain interface{} tree ready for
// json.Marshal: nil, bool, float64, string, or map[string]interface{}.
// Priorities are not embedded; callers needing ".priority" wrap separately.
func (n Node) Wire() interface{} {
	if !n.isChildren {
		switch n.leafKind {
		case LeafBoolean:
			return n.boolVal
		case LeafNumber:
			return n.numVal
		case LeafString:
			return n.strVal
		case LeafServerValue:
			return map[string]interface{}{".sv": string(n.svKind)}
		default:
			return nil
		}
	}
	m := make(map[string]interface{}, n.NumChildren())
	n.ForEach(func(k Key, v Node) bool {
		m[string(k)] = v.Wire()
		return true
	})
	return m
}

// NodeFromWire builds a Node from a decoded JSON value (as produced by
// encoding/json with UseNumber disabled, i.e. numbers as float64).
func NodeFromWire(v interface{}) Node {
	switch val := v.(type) {
	case nil:
		return Null()
	case bool:
		return BoolNode(val)
	case float64:
		return NumberNode(val)
	case string:
		return StringNode(val)
	case map[string]interface{}:
		if sv, ok := val[".sv"].(string); ok && len(val) == 1 {
			return ServerValueNode(ServerValuePlaceholder(sv))
		}
		pairs := make(map[Key]Node, len(val))
		var pr Priority
		for k, cv := range val {
			if k == ".priority" {
				pr = PriorityFromWire(cv)
				continue
			}
			pairs[Key(k)] = NodeFromWire(cv)
		}
		return ChildrenNode(pairs).WithPriority(pr)
	default:
		return Null()
	}
}

// --- orderedChildren: a key-sorted slice backing Node's Children variant ---
//
// A balanced tree would give O(log n) insert/delete/iterate; this module
// instead keeps a sorted slice with binary-search lookup (O(log n)) and
// linear-shift insert/delete (O(n)). For the child-count most Realtime
// Database snapshots carry (tens to low hundreds), the simpler
// representation is both faster in practice and far easier to keep
// correct under concurrent re-entrant rebuilds than a hand-rolled tree.
type childEntry struct {
	key   Key
	value Node
}

type orderedChildren struct {
	entries []childEntry
}

func newOrderedChildren() *orderedChildren {
	return &orderedChildren{}
}

func (oc *orderedChildren) len() int { return len(oc.entries) }

func (oc *orderedChildren) search(k Key) (int, bool) {
	i := sort.Search(len(oc.entries), func(i int) bool {
		return !oc.entries[i].key.Less(k)
	})
	if i < len(oc.entries) && oc.entries[i].key == k {
		return i, true
	}
	return i, false
}

func (oc *orderedChildren) get(k Key) (Node, bool) {
	i, ok := oc.search(k)
	if !ok {
		return Node{}, false
	}
	return oc.entries[i].value, true
}

func (oc *orderedChildren) set(k Key, v Node) {
	i, ok := oc.search(k)
	if ok {
		oc.entries[i].value = v
		return
	}
	oc.entries = append(oc.entries, childEntry{})
	copy(oc.entries[i+1:], oc.entries[i:])
	oc.entries[i] = childEntry{key: k, value: v}
}

func (oc *orderedChildren) remove(k Key) {
	i, ok := oc.search(k)
	if !ok {
		return
	}
	oc.entries = append(oc.entries[:i], oc.entries[i+1:]...)
}

func (oc *orderedChildren) copyFrom(other *orderedChildren) {
	oc.entries = append(oc.entries[:0], other.entries...)
}
