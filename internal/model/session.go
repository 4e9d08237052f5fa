package model

import "time"

// ParticipantStatus is the backend's view of one user's attempt
type ParticipantStatus string

const (
	StatusNotStarted ParticipantStatus = "not_started"
	StatusInProgress ParticipantStatus = "in_progress"
	StatusCompleted  ParticipantStatus = "completed"

	// StatusActive is reported by older deployments instead of in_progress
	StatusActive ParticipantStatus = "active"
)

// IsRunning reports whether the status denotes an attempt in progress
func (s ParticipantStatus) IsRunning() bool {
	return s == StatusInProgress || s == StatusActive
}

// Participation is one competition attempt as stored by the backend
type Participation struct {
	ID          string                     `json:"id" bson:"_id,omitempty"`
	UserID      string                     `json:"userId" bson:"userId"`
	StartTime   time.Time                  `json:"startTime" bson:"startTime"`
	EndTime     time.Time                  `json:"endTime" bson:"endTime"`
	Status      ParticipantStatus          `json:"status" bson:"status"`
	QuestionIDs []string                   `json:"questionIds" bson:"questionIds"`
	Answers     map[string]SubmittedAnswer `json:"answers,omitempty" bson:"answers,omitempty"`
	CompletedAt *time.Time                 `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// Session is the client's view of a participation.
// The deadline is StartTime + Duration and never moves once StartTime is set.
type Session struct {
	ParticipationID string
	StartTime       *time.Time
	Duration        time.Duration
	Status          ParticipantStatus
}

// NewSession builds the client session from a server participation
func NewSession(p *Participation, duration time.Duration) *Session {
	s := &Session{
		ParticipationID: p.ID,
		Duration:        duration,
		Status:          p.Status,
	}
	if !p.StartTime.IsZero() {
		start := p.StartTime
		s.StartTime = &start
	}
	return s
}

// EndTime returns the session deadline, false if the session has not begun
func (s *Session) EndTime() (time.Time, bool) {
	if s == nil || s.StartTime == nil {
		return time.Time{}, false
	}
	return s.StartTime.Add(s.Duration), true
}
