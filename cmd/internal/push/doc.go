// Package push notifies connected clients about session revocations.
//
// A browser tab that received its token through the cross-domain relay
// has no cookie channel back to the auth origin; the websocket gateway
// here is how other devices holding the same session learn about a
// logout without polling.
package push
