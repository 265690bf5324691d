package notify

import "errors"

var (
	// ErrEmptyID is returned when scheduling a notification without an id.
	ErrEmptyID = errors.New("notification id is empty")

	// ErrQueuePath is returned when a bolt queue has no file path.
	ErrQueuePath = errors.New("queue path is empty")

	// ErrWebhookStatus is returned when a webhook answers with a non-2xx status.
	ErrWebhookStatus = errors.New("webhook returned non-success status")
)
