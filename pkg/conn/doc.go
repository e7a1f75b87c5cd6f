// Package conn implements the persistent connection to the Realtime
// Database: the WebSocket transport, the frame envelope and splitting
// protocol, the connection state machine, host resolution, and the
// reconnect backoff policy.
//
// A Connection is the sole owner of its socket and its outbound request
// map; every exported method is safe to call from the run-loop goroutine
// only (per the engine's single-threaded ownership model — see
// pkg/runloop). Socket reads and writes happen on dedicated goroutines
// that hand control frames, data pushes, and response frames back to the
// Connection's Delegate across a channel, so a slow or stuck Delegate
// callback never blocks the socket.
package conn
