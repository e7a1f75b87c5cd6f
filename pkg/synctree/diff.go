package synctree

import (
	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
)

// ChildEvent is one child-level delta between a view's previous and
// current materialized state.
type ChildEvent struct {
	Type    runloop.EventType
	Key     model.Key
	Node    model.Node // the node after the change (old node, for a removal)
	PrevKey model.Key  // the key immediately preceding Key in the new order; "" if first
}

// diffChildren computes the minimal ordered event sequence taking prev to
// next, per spec §4.2: removes, then adds, then changes, then moves, each
// sub-sequence ordered by the view's index (next's order).
func diffChildren(prev, next []entry) []ChildEvent {
	prevIdx := indexOf(prev)
	nextIdx := indexOf(next)

	var events []ChildEvent

	for _, e := range prev {
		if _, ok := nextIdx[e.key]; !ok {
			events = append(events, ChildEvent{Type: runloop.EventChildRemoved, Key: e.key, Node: e.node})
		}
	}

	for i, e := range next {
		if _, ok := prevIdx[e.key]; !ok {
			events = append(events, ChildEvent{Type: runloop.EventChildAdded, Key: e.key, Node: e.node, PrevKey: prevKeyAt(next, i)})
		}
	}

	for i, e := range next {
		if old, ok := prevIdx[e.key]; ok && !old.node.Equal(e.node) {
			events = append(events, ChildEvent{Type: runloop.EventChildChanged, Key: e.key, Node: e.node, PrevKey: prevKeyAt(next, i)})
		}
	}

	for _, key := range movedKeys(prev, next) {
		i := nextIdx[key].pos
		events = append(events, ChildEvent{Type: runloop.EventChildMoved, Key: key, Node: next[i].node, PrevKey: prevKeyAt(next, i)})
	}

	return events
}

type posEntry struct {
	node model.Node
	pos  int
}

func indexOf(entries []entry) map[model.Key]posEntry {
	m := make(map[model.Key]posEntry, len(entries))
	for i, e := range entries {
		m[e.key] = posEntry{node: e.node, pos: i}
	}
	return m
}

func prevKeyAt(ordered []entry, i int) model.Key {
	if i == 0 {
		return ""
	}
	return ordered[i-1].key
}

// movedKeys returns the keys present in both prev and next whose relative
// order changed, using a longest-common-subsequence so a single real move
// doesn't cascade into reporting every other survivor as moved too.
func movedKeys(prev, next []entry) []model.Key {
	nextIdx := indexOf(next)

	var commonPrev []model.Key
	for _, e := range prev {
		if _, ok := nextIdx[e.key]; ok {
			commonPrev = append(commonPrev, e.key)
		}
	}
	prevIdx := indexOf(prev)
	var commonNext []model.Key
	for _, e := range next {
		if _, ok := prevIdx[e.key]; ok {
			commonNext = append(commonNext, e.key)
		}
	}

	inLCS := lcsKeySet(commonPrev, commonNext)
	var moved []model.Key
	for _, k := range commonNext {
		if !inLCS[k] {
			moved = append(moved, k)
		}
	}
	return moved
}

// lcsKeySet returns the set of keys belonging to a longest common
// subsequence of a and b (standard O(len(a)*len(b)) DP).
func lcsKeySet(a, b []model.Key) map[model.Key]bool {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	result := make(map[model.Key]bool)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			result[a[i]] = true
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return result
}
