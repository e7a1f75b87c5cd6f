// Package writequeue holds the ordered log of pending local writes (set,
// update, transaction) and the optimistic transaction runner built on top
// of it.
//
// A Queue is owned by the run loop exactly like pkg/conn.Connection: every
// exported method is only ever called from the run-loop goroutine, so the
// queue needs no internal locking. It does not talk to the network
// directly — it stages records and hands them to a Sender (satisfied by
// *conn.Connection) for delivery, and recomputes the shadowed view of a
// path for callers (the sync tree) that need to know what local writes
// currently obscure the server's data.
package writequeue
