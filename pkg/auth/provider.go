package auth

import (
	"context"
	"os"
)

// EmulatorToken is the fixed bearer token the Realtime Database emulator
// accepts in place of a real credential.
const EmulatorToken = "owner"

// EmulatorHostEnv names the environment variable that, when set, redirects
// the connection to a local emulator instead of production Firebase.
const EmulatorHostEnv = "FIREBASE_DATABASE_EMULATOR_HOST"

// TokenProvider supplies bearer tokens for the `auth` wire action and for
// periodic refresh. Implementations are expected to be safe for concurrent
// use, though the engine only ever calls them from the run-loop thread.
type TokenProvider interface {
	// Token returns a valid bearer token, fetching or refreshing one as
	// needed. Implementations should respect ctx cancellation.
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider always returns the same token; useful for tests and
// for the emulator bypass.
type StaticTokenProvider string

func (s StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// EmulatorProvider returns a TokenProvider for the emulator bypass: the
// fixed "owner" token, regardless of any real credential configuration.
func EmulatorProvider() TokenProvider {
	return StaticTokenProvider(EmulatorToken)
}

// EmulatorHost reports the configured emulator host:port, and whether the
// emulator environment variable was set at all.
func EmulatorHost() (string, bool) {
	host := os.Getenv(EmulatorHostEnv)
	return host, host != ""
}

// ResolveProvider returns real if the emulator environment variable is not
// set, otherwise it returns the emulator bypass provider. Callers configure
// their production TokenProvider by passing it as real; ResolveProvider
// never affects behavior outside of emulator mode.
func ResolveProvider(real TokenProvider) TokenProvider {
	if _, ok := EmulatorHost(); ok {
		return EmulatorProvider()
	}
	return real
}
