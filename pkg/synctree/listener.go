package synctree

import "github.com/firebase/rtdb-go/pkg/model"

// ValueListener receives the full materialized value at a view's spec
// every time it changes.
type ValueListener func(data model.Node)

// ChildListener receives one ordered child-level delta at a time.
type ChildListener func(evt ChildEvent)

// CancelListener fires once if the server revokes this listener's
// underlying listen (permission_denied) or it is cancelled for any other
// terminal reason; the listener is removed automatically afterward.
type CancelListener func(err error)

// Listener is one registered observer on a view. Either OnValue or
// OnChild is typically set (not both), matching the value()/on("child_*")
// API surfaces; OnCancel is optional either way.
type Listener struct {
	ID       uint64
	OnValue  ValueListener
	OnChild  ChildListener
	OnCancel CancelListener
}
