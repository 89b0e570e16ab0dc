// Package queue implements the durable outbound email queue.
//
// Producers enqueue single messages (optionally under a campaign). The drain
// worker consumes due items through Due, Claim, MarkSent and MarkFailed.
// Status only moves pending/scheduled -> sending -> sent|failed; the
// repository enforces each step with a conditional update.
package queue
