package rtdb

import (
	"time"

	"github.com/firebase/rtdb-go/pkg/auth"
	"github.com/firebase/rtdb-go/pkg/persistence"
)

// Config assembles a Client. There is no process-wide default: every field
// a caller cares about is set explicitly here, and NewClient fails fast on
// the ones it cannot do without.
type Config struct {
	// Namespace is the Realtime Database instance name (the subdomain in
	// https://<namespace>.firebaseio.com), used for host resolution.
	Namespace string

	// Credential supplies bearer tokens for the wire "auth" action. If the
	// FIREBASE_DATABASE_EMULATOR_HOST environment variable is set this is
	// ignored in favor of the emulator bypass token (auth.ResolveProvider).
	Credential auth.TokenProvider

	// Store, if non-nil, persists the server cache, the pending-write log,
	// and tracked-query metadata across restarts (spec §4.5). A nil Store
	// runs fully in memory.
	Store persistence.Store

	DialTimeout    time.Duration
	RequestTimeout time.Duration
	IdleTimeout    time.Duration

	// TaskQueueSize and EventQueueSize bound the run loop's and event
	// target's pending-work channels; the teacher's worker pool sizes its
	// channels the same way (a fixed backlog, not unbounded growth).
	TaskQueueSize  int
	EventQueueSize int
}

func (c Config) withDefaults() Config {
	if c.TaskQueueSize == 0 {
		c.TaskQueueSize = 256
	}
	if c.EventQueueSize == 0 {
		c.EventQueueSize = 256
	}
	return c
}
