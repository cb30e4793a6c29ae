package domain

import "time"

// Outcome event types reported back to Pinpoint.
const (
	EventTypeSuccess = "facebookads.success"
	EventTypeFailure = "facebookads.failure"
)

// MaxErrorLength is the longest error message the producer platform accepts
// in an event attribute.
const MaxErrorLength = 195

// OutcomeEvent is the per-recipient success or failure signal for one
// processed fragment. The endpoint snapshot must already be stripped of
// producer-internal fields.
type OutcomeEvent struct {
	EndpointID string
	CampaignID string
	Endpoint   Endpoint
	EventType  string
	Timestamp  time.Time
	Attributes map[string]string
}

// TruncateError shortens an error message to MaxErrorLength characters.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLength {
		return msg[:MaxErrorLength]
	}
	return msg
}
