// Package relay carries an authenticated session from the auth origin to
// a consuming origin without shared cookies.
//
// The token travels once through redirect query parameters, is persisted
// into per-origin storage, and is re-validated against the auth origin on
// every page load. Storage mutations act as the cross-tab message channel:
// a token written elsewhere triggers a re-sync, a removal propagates
// logout without a network call.
package relay
