// Package rsvp handles RSVP answers that arrive through email links.
//
// The caller is an unauthenticated member, so every outcome, including
// failures, is an HTML page.
package rsvp
