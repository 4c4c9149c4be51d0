// Package kafka owns the downstream log client.
//
// Two concerns live here:
//   - Writer: the tick fast path. Non-blocking produce tuned to absorb the
//     opening burst; delivery failures are surfaced once per supervisor
//     iteration.
//   - Probe: the holiday-vs-outage discriminator. A one-shot
//     offsets-after-timestamp query answering "has anything been produced
//     since the current session opened?".
package kafka
