package queue

import "errors"

// Sentinel errors for the queue service layer.
var (
	ErrNotFound         = errors.New("queue item not found")
	ErrCampaignNotFound = errors.New("campaign not found")
)
