// Package auth provides the token-provider boundary between the sync
// engine and whatever credential source an application supplies.
//
// The engine never performs OAuth2 exchange itself: a caller-supplied
// TokenProvider is the sole collaborator for real credentials, per the
// sync engine spec's explicit non-goal of implementing Auth / credential
// loading. This package additionally implements the emulator bypass
// described there: FIREBASE_DATABASE_EMULATOR_HOST overrides host
// resolution and disables TLS, and an unconfigured credential falls back
// to the fixed "owner" bearer token the emulator accepts.
package auth
