package domain

import (
	"time"
)

// EmailQueueStatus enumerates the lifecycle of a single queued email.
type EmailQueueStatus string

const (
	EmailPending   EmailQueueStatus = "pending"
	EmailScheduled EmailQueueStatus = "scheduled"
	EmailSending   EmailQueueStatus = "sending"
	EmailSent      EmailQueueStatus = "sent"
	EmailFailed    EmailQueueStatus = "failed"
)

// IsTerminal returns true once the item can no longer change status.
func (s EmailQueueStatus) IsTerminal() bool {
	return s == EmailSent || s == EmailFailed
}

// Claimable reports whether a drain cycle may move the item to sending.
func (s EmailQueueStatus) Claimable() bool {
	return s == EmailPending || s == EmailScheduled
}

// DefaultPriority is used when a producer does not pick one.
const DefaultPriority = 1

// EmailQueueItem is one concrete message waiting for (or done with) delivery.
type EmailQueueItem struct {
	ID           string           `json:"id" db:"id"`
	CampaignID   *string          `json:"campaign_id,omitempty" db:"campaign_id"`
	ToEmail      string           `json:"to_email" db:"to_email"`
	ToName       string           `json:"to_name,omitempty" db:"to_name"`
	Subject      string           `json:"subject" db:"subject"`
	HTMLBody     string           `json:"html_body" db:"html_body"`
	TextBody     string           `json:"text_body,omitempty" db:"text_body"`
	Status       EmailQueueStatus `json:"status" db:"status"`
	Priority     int              `json:"priority" db:"priority"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty" db:"scheduled_for"`
	NextRetryAt  *time.Time       `json:"next_retry_at,omitempty" db:"next_retry_at"`
	ErrorMessage string           `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
	SentAt       *time.Time       `json:"sent_at,omitempty" db:"sent_at"`
	FailedAt     *time.Time       `json:"failed_at,omitempty" db:"failed_at"`
}

// CampaignStatus is a reporting tag on an EmailCampaign.
type CampaignStatus string

const (
	CampaignQueued    CampaignStatus = "queued"
	CampaignCompleted CampaignStatus = "completed"
)

// CampaignType tags what produced a campaign.
type CampaignType string

const (
	CampaignRSVPDeadlineReminder  CampaignType = "rsvp_deadline_reminder"
	CampaignEventAttendeeReminder CampaignType = "event_attendee_reminder"
	CampaignEventAnnouncement     CampaignType = "event_announcement"
	CampaignRSVPConfirmation      CampaignType = "rsvp_confirmation"
	CampaignManual                CampaignType = "manual"
)

// EmailCampaign groups queue items that belong to one broadcast or reminder wave.
type EmailCampaign struct {
	ID              string         `json:"id" db:"id"`
	Name            string         `json:"name" db:"name"`
	Type            CampaignType   `json:"type" db:"type"`
	Status          CampaignStatus `json:"status" db:"status"`
	TotalRecipients int            `json:"total_recipients" db:"total_recipients"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}
