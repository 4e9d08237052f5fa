package model

import "time"

// Answer is the user's current response for one question
type Answer struct {
	QuestionID string    `json:"questionId"`
	Value      string    `json:"value"`
	Timestamp  time.Time `json:"timestamp,omitempty"` // set at submission time
}

// HasResponse reports whether the answer carries a value worth sending
func (a *Answer) HasResponse() bool {
	return a.Value != ""
}

// SubmitAnswerRequest is the body of POST /competition/submit/{questionId}
type SubmitAnswerRequest struct {
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmittedAnswer is an answer as recorded by the backend
type SubmittedAnswer struct {
	Answer     string    `json:"answer" bson:"answer"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt" bson:"receivedAt"`
}

// SubmitAck acknowledges one submitted answer
type SubmitAck struct {
	Success    bool              `json:"success"`
	QuestionID string            `json:"questionId"`
	ReceivedAt time.Time         `json:"receivedAt"`
	Status     ParticipantStatus `json:"status"`
}

// SubmissionOutcome is the per-question result inside one sweep
type SubmissionOutcome string

const (
	OutcomePending SubmissionOutcome = "pending"
	OutcomeSent    SubmissionOutcome = "sent"
	OutcomeFailed  SubmissionOutcome = "failed"
)

// SweepState tracks one submission sweep: idle -> in_flight -> done
type SweepState int

const (
	SweepIdle SweepState = iota
	SweepInFlight
	SweepDone
)

func (s SweepState) String() string {
	switch s {
	case SweepIdle:
		return "idle"
	case SweepInFlight:
		return "in_flight"
	case SweepDone:
		return "done"
	}
	return "unknown"
}
