// Package runloop implements the engine's single-writer scheduling model.
//
// A RunLoop is the one goroutine that owns sync-tree mutation, connection
// protocol state, and write-queue bookkeeping: every cross-goroutine
// interaction with engine state is a non-blocking Post onto its FIFO task
// queue, never a lock. An EventTarget is the separate goroutine (or pool)
// that runs user listener callbacks, so slow application code never stalls
// the run loop; events produced by one mutation are posted as a single
// batch so listeners never observe a partially-applied update.
package runloop
