// Package token issues and checks the single-use RSVP tokens embedded in
// reminder emails.
//
// A token binds one (user, event) pair. Issuing is idempotent: while an
// unused, unexpired token exists for the pair it is returned as is, so
// re-sending an email never invalidates a link the member already has.
package token
