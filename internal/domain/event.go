package domain

import "time"

// EventType names a change in the submission lifecycle.
type EventType string

const (
	EventSubmitted   EventType = "submitted"
	EventResubmitted EventType = "resubmitted"
	EventDecided     EventType = "decided"
)

// SubmissionEvent is published after a successful submission mutation.
type SubmissionEvent struct {
	Type       EventType
	Submission KYCSubmission
	At         time.Time
}
