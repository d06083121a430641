// Package authapi exposes the passwordless auth endpoints over HTTP JSON.
//
// It wires contact normalization, one-time-code issuance, code
// verification, and session check/sync/revoke onto a ServeMux, and owns
// the per-IP rate limiting in front of the brute-force-sensitive paths.
package authapi
