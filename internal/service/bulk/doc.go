// Package bulk implements admin-composed bulk email jobs with per-recipient
// tracking.
//
// The service owns creation and the admin controls (cancel, pause, resume).
// The bulk worker drives processing through NextPending, Start,
// RecordRecipient and Finish, re-reading the job status before every
// recipient so admin actions take effect at recipient boundaries.
package bulk
