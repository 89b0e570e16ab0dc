package domain

import "time"

// EmailQuota is the send counter for one UTC calendar day.
type EmailQuota struct {
	Date       time.Time `json:"date" db:"date"`
	EmailsSent int       `json:"emails_sent" db:"emails_sent"`
	QuotaLimit int       `json:"quota_limit" db:"quota_limit"`
}

// Remaining returns max(0, limit - sent).
func (q *EmailQuota) Remaining() int {
	if n := q.QuotaLimit - q.EmailsSent; n > 0 {
		return n
	}
	return 0
}

// QuotaDay returns the UTC day key for t.
func QuotaDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
