// Package schedule implements the exchange session clock.
//
// The schedule:
//   - Maps an exchange-zone timestamp to trading / closed
//   - Applies a symmetric buffer around session opens and closes
//   - Handles the midnight-wrapping night session, weekends, and holidays
//   - Selects the session-appropriate slow-tick threshold
//
// All functions are pure; nothing here touches the wall clock.
package schedule
