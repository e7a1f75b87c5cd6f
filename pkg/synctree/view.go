package synctree

import (
	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
)

// view is the materialized state for one query spec: its current value,
// the ordered child entries behind it (when it holds children), and the
// listeners registered on it.
type view struct {
	spec model.QuerySpec
	tag  uint64 // wire tag this view's server listen was assigned, 0 if locally satisfied

	listeners []*Listener

	lastValue   model.Node
	lastEntries []entry
	hasValue    bool // whether any value has ever been delivered (first value event is null, not skipped)
}

func newView(spec model.QuerySpec) *view {
	return &view{spec: spec}
}

func (v *view) addListener(l *Listener) {
	v.listeners = append(v.listeners, l)
}

// removeListener drops l and reports whether the view now has none left.
func (v *view) removeListener(id uint64) (empty bool) {
	for i, l := range v.listeners {
		if l.ID == id {
			v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)
			break
		}
	}
	return len(v.listeners) == 0
}

// recompute materializes full (the write-shadowed node at the view's
// path) through the view's params, diffs it against the last delivered
// state, and returns the dispatches (one per listener per event) to post
// to the event target. It always updates the view's remembered state,
// even if there are no listeners yet (a view can exist briefly for a
// one-shot read with no registered listener).
func (v *view) recompute(full model.Node) []runloop.Dispatch {
	newValue := materialize(full, v.spec.Params)
	var newEntries []entry
	if newValue.IsChildren() {
		newEntries = project(full, v.spec.Params)
	}

	if v.hasValue && newValue.Equal(v.lastValue) {
		return nil
	}

	events := diffChildren(v.lastEntries, newEntries)

	v.lastValue = newValue
	v.lastEntries = newEntries
	v.hasValue = true

	var dispatches []runloop.Dispatch
	for _, l := range v.listeners {
		l := l
		if l.OnValue != nil {
			val := newValue
			dispatches = append(dispatches, func() { l.OnValue(val) })
		}
		if l.OnChild != nil {
			for _, e := range events {
				e := e
				dispatches = append(dispatches, func() { l.OnChild(e) })
			}
		}
	}
	return dispatches
}

// cancel notifies every listener on v that it has been revoked and
// clears them; the caller is responsible for removing v from its
// sync point.
func (v *view) cancel(err error) []runloop.Dispatch {
	var dispatches []runloop.Dispatch
	for _, l := range v.listeners {
		if l.OnCancel != nil {
			l := l
			dispatches = append(dispatches, func() { l.OnCancel(err) })
		}
	}
	v.listeners = nil
	return dispatches
}
