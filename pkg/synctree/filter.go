package synctree

import (
	"sort"

	"github.com/firebase/rtdb-go/pkg/model"
)

// entry is one ordered child under a view: the key and the node visible
// at it (already write-shadowed).
type entry struct {
	key  model.Key
	node model.Node
}

// project filters and orders full's children per params, returning the
// entries a view over this spec should hold. A default (unrestricted)
// spec returns every child in priority order.
func project(full model.Node, params model.Params) []entry {
	var all []entry
	full.ForEach(func(k model.Key, v model.Node) bool {
		all = append(all, entry{key: k, node: v})
		return true
	})

	sort.SliceStable(all, func(i, j int) bool {
		return indexLess(params.Index, params.ChildPath, all[i], all[j])
	})

	if params.Start.Set || params.End.Set {
		filtered := all[:0:0]
		for _, e := range all {
			if passesStart(params.Index, params.ChildPath, e, params.Start) &&
				passesEnd(params.Index, params.ChildPath, e, params.End) {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}

	if params.Limit > 0 && len(all) > params.Limit {
		switch params.Anchor {
		case model.AnchorLast:
			all = all[len(all)-params.Limit:]
		default: // AnchorFirst, or AnchorNone with a limit set defensively
			all = all[:params.Limit]
		}
	}
	return all
}

// indexLess totally orders two entries by params.Index, breaking ties on
// key so the ordering is stable regardless of index collisions.
func indexLess(idx model.IndexKind, childPath model.Path, a, b entry) bool {
	if idx == model.IndexByKey {
		return a.key.Less(b.key)
	}
	av, bv := indexComparable(idx, childPath, a.node), indexComparable(idx, childPath, b.node)
	if valueLess(av, bv) {
		return true
	}
	if valueLess(bv, av) {
		return false
	}
	return a.key.Less(b.key)
}

// indexComparable extracts the value an index orders by: the priority
// (re-expressed as a plain value so it shares valueLess's ranking), the
// node itself, or a named descendant.
func indexComparable(idx model.IndexKind, childPath model.Path, n model.Node) model.Node {
	switch idx {
	case model.IndexByPriority:
		return priorityAsNode(n.Priority())
	case model.IndexByChildPath:
		return n.GetPath(childPath)
	default: // IndexByValue
		return n
	}
}

func priorityAsNode(p model.Priority) model.Node {
	switch p.Kind() {
	case model.PriorityNumber:
		return model.NumberNode(p.Number())
	case model.PriorityString:
		return model.StringNode(p.Str())
	default:
		return model.Null()
	}
}

// valueRank orders the scalar kinds per the database's cross-type
// ordering: null < boolean < number < string < children.
func valueRank(n model.Node) int {
	if n.IsChildren() {
		return 4
	}
	switch n.LeafKind() {
	case model.LeafBoolean:
		return 1
	case model.LeafNumber, model.LeafServerValue:
		return 2
	case model.LeafString:
		return 3
	default: // LeafNull
		return 0
	}
}

func valueLess(a, b model.Node) bool {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra < rb
	}
	switch ra {
	case 1:
		return !a.Bool() && b.Bool()
	case 2:
		return a.Number() < b.Number()
	case 3:
		return a.Str() < b.Str()
	default:
		return false
	}
}

func valueEqual(a, b model.Node) bool {
	return !valueLess(a, b) && !valueLess(b, a)
}

// passesStart reports whether e satisfies params' start bound: its index
// value is strictly greater than the bound, or equal with a key at or
// after the bound's (an unset bound key means any key at that value
// passes).
func passesStart(idx model.IndexKind, childPath model.Path, e entry, b model.Bound) bool {
	if !b.Set {
		return true
	}
	if idx == model.IndexByKey {
		return !e.key.Less(b.Key)
	}
	ev := indexComparable(idx, childPath, e.node)
	switch {
	case valueLess(ev, b.Value):
		return false
	case valueLess(b.Value, ev):
		return true
	default:
		return b.Key == "" || !e.key.Less(b.Key)
	}
}

// passesEnd is passesStart's mirror for the end bound.
func passesEnd(idx model.IndexKind, childPath model.Path, e entry, b model.Bound) bool {
	if !b.Set {
		return true
	}
	if idx == model.IndexByKey {
		return !b.Key.Less(e.key)
	}
	ev := indexComparable(idx, childPath, e.node)
	switch {
	case valueLess(b.Value, ev):
		return false
	case valueLess(ev, b.Value):
		return true
	default:
		return b.Key == "" || !b.Key.Less(e.key)
	}
}

// materialize builds the Node a view over params should hold, given the
// fully write-shadowed node at the view's path.
func materialize(full model.Node, params model.Params) model.Node {
	if params.IsDefault() {
		return full
	}
	if full.IsLeaf() {
		return model.Null() // a query with range/limit params over a leaf has no children to select
	}
	entries := project(full, params)
	pairs := make(map[model.Key]model.Node, len(entries))
	for _, e := range entries {
		pairs[e.key] = e.node
	}
	return model.ChildrenNode(pairs)
}
