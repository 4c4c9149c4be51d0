// Package bridge implements the resilience supervisor.
//
// The supervisor:
//   - Ticks every monitor interval and reads the session clock
//   - Subscribes during trading hours, unsubscribes outside them
//   - Watches tick silence and escalates: slow-tick warnings, critical
//     timeouts, forced reconnects
//   - Distinguishes a trading holiday from a connectivity outage by probing
//     the downstream log, and sleeps through confirmed holidays
//
// The tick fast path (serialize one tick, hand it to the producer) also
// lives here; it must never block the SDK's callback goroutine.
package bridge
