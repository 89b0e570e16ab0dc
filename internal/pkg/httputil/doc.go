// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Admin handlers answer with JSON envelopes; the public RSVP endpoint answers
// with HTML. Both go through these helpers so status codes, content types and
// error logging stay consistent.
package httputil
