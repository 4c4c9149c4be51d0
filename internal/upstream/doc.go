// Package upstream implements the vendor quote-feed session manager.
//
// The session manager:
//   - Owns the SDK handle and its login/subscribe lifecycle
//   - Tracks the subscribed flag and the pending subscribe/unsubscribe op
//   - Serializes reconnects behind a non-blocking guard
//   - Converts every SDK failure into ErrLoginOrFetch or a logged warning
//
// The SDK itself is injected through the API interface; a handle factory is
// supplied at construction so reconnects get a fresh session.
package upstream
