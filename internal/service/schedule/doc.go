// Package schedule implements scheduled email jobs: durable intents that
// expand into queued email when they come due.
//
// Each job kind maps to one expander through a lookup table. Unknown kinds
// fall back to the RSVP deadline reminder and are logged. Creation goes
// through the shared find-or-create primitive so at most one active job
// exists per (job type, entity type, entity id).
package schedule
