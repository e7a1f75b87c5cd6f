// Package synctree maintains the in-memory authoritative view of every
// path and query the application is observing: a path-indexed tree of
// sync points, each holding the server's last-known snapshot and the set
// of views (one per distinct query spec) anchored there.
//
// A Tree implements pkg/conn.Delegate to absorb server pushes, asks a
// pkg/writequeue.Queue for the pending-write shadow over that snapshot,
// and on every mutation recomputes each affected view's materialized
// value, diffs it against what that view last delivered, and posts the
// resulting (minimal, ordered) events to a pkg/runloop.EventTarget.
//
// Like pkg/conn.Connection, a Tree is owned by the run loop: every
// exported method is only ever called from the run-loop goroutine.
package synctree
