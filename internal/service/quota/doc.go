// Package quota implements the daily send quota.
//
// The counter is one row per UTC day, created lazily on first use. Both
// background loops read it before sending and increment it after a
// successful send. Check and increment are separate steps, so two loops can
// jointly overshoot the limit by up to one batch; the provider's own cap is
// the hard backstop.
package quota
