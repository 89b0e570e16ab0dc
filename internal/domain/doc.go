// Package domain holds the records the mailer persists and passes between
// layers: queued messages, scheduled jobs, bulk jobs with their recipients,
// the daily quota row and RSVP tokens.
//
// The package imports nothing else from internal/. Status vocabularies live
// here as string constants together with small pure helpers such as
// IsTerminal and RecurrenceRule.Next. Anything that needs a database or a
// request belongs in a service package; helpers that care about time take it
// as an argument.
package domain
