package writequeue

import "github.com/firebase/rtdb-go/pkg/model"

// Outcome is the terminal result delivered to a write's completion
// callback, per spec §4.3.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeRevert
	OutcomeCancel
)

// Kind discriminates the record variants a write produces.
type Kind uint8

const (
	KindOverwrite   Kind = iota // set(path, value)
	KindMerge                   // update(path, {child: value})
	KindTransaction             // runTransaction: overwrite, but re-runnable
)

// Callback reports a write's terminal outcome exactly once.
type Callback func(o Outcome, err error)

// Record is one pending local write, held in the queue from the moment the
// caller issues it until an ack, revert, or cancel retires it.
type Record struct {
	WriteID int64
	Kind    Kind
	Path    model.Path

	// Overwrite holds the full value for KindOverwrite/KindTransaction.
	Overwrite model.Node
	// Merge holds the child map for KindMerge; keys are relative paths
	// under Path (slash-separated for a deep update), applied
	// independently, matching update()'s multi-location semantics.
	Merge map[model.Key]model.Node

	Visible  bool // applyLocally: whether this record shadows reads before being acked
	Callback Callback

	// txn is set only for KindTransaction; it carries the precondition
	// hash the put was sent with and how many retries produced it.
	txn *transactionState

	// onDataStale, set only by the transaction runner, is invoked instead
	// of Callback when the server rejects this record with datastale; the
	// queue removes the record either way.
	onDataStale func()
}

// Affects reports whether this record can change the materialized value at
// p: either it writes at or under p, or p is itself under the record's
// write path (an ancestor overwrite shadows everything beneath it).
func (r *Record) Affects(p model.Path) bool {
	return r.Path.Contains(p) || p.Contains(r.Path)
}

// ancestorValue computes p's value given that r.Path is a strict ancestor
// of p (the caller has already established this via Affects/Contains). An
// overwrite or transaction replaces the whole subtree at r.Path, so p's
// value comes straight out of the stored node; a merge only matters to p
// through whichever of its child entries land at or around p.
func (r *Record) ancestorValue(p model.Path, out model.Node) model.Node {
	if r.Kind != KindMerge {
		return r.Overwrite.GetPath(p.RelativeTo(r.Path))
	}
	for k, v := range r.Merge {
		rel, err := model.NewPath(string(k))
		if err != nil {
			continue // malformed update key; server would reject it too
		}
		child := r.Path.Append(rel)
		switch {
		case child.Contains(p):
			// p lies under (or at) this merge entry: it wholly determines
			// p's value, same as an overwrite would.
			out = v.GetPath(p.RelativeTo(child))
		case p.Contains(child):
			// this merge entry writes somewhere under p: splice it in.
			out = out.UpdatePath(child.RelativeTo(p), v)
		}
	}
	return out
}

// apply folds r onto base, where base is the node already visible at
// r.Path (i.e. the caller has already walked down to r.Path before
// calling this). Records are applied to a path-local subtree, so base
// and the result both live at r.Path's location in the tree.
func (r *Record) apply(base model.Node) model.Node {
	switch r.Kind {
	case KindMerge:
		out := base
		for k, v := range r.Merge {
			rel, err := model.NewPath(string(k))
			if err != nil {
				continue // malformed update key; server would reject it too
			}
			out = out.UpdatePath(rel, v)
		}
		return out
	default: // KindOverwrite, KindTransaction
		return r.Overwrite
	}
}
