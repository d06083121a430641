// Package session implements the session lifecycle for codegate:
// one-time-code verification, bearer-token minting and hashing, session
// validation, cross-domain sync, and revocation.
//
// The plaintext bearer token leaves the server exactly once, at creation.
// Server-side storage only ever holds its one-way digest, which doubles as
// the lookup key for the session row.
package session
