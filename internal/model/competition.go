package model

import "time"

// CompetitionPhase is the global phase of the competition window
type CompetitionPhase string

const (
	PhaseUpcoming              CompetitionPhase = "upcoming"
	PhaseInProgressCanEnter    CompetitionPhase = "in_progress_can_enter"
	PhaseInProgressCannotEnter CompetitionPhase = "in_progress_cannot_enter"
	PhaseCompleted             CompetitionPhase = "completed"
)

// CompetitionConfig describes the competition window.
// EntranceDeadline closes the entry window; AbsoluteEndTime is the latest any
// session may run. Neither replaces the per-session deadline.
type CompetitionConfig struct {
	StartTime         time.Time        `json:"startTime"`
	EntranceDeadline  time.Time        `json:"entranceDeadline"`
	AbsoluteEndTime   time.Time        `json:"absoluteEndTime"`
	CompetitionLength int              `json:"competitionLength"` // seconds
	Status            CompetitionPhase `json:"status"`
	CurrentServerTime time.Time        `json:"currentServerTime"`
	NextStartTime     *time.Time       `json:"nextStartTime,omitempty"`
}

// Length returns the per-session duration
func (c *CompetitionConfig) Length() time.Duration {
	return time.Duration(c.CompetitionLength) * time.Second
}

// ConfigResponse is the envelope of GET /competition/config
type ConfigResponse struct {
	Success bool              `json:"success"`
	Data    CompetitionConfig `json:"data"`
	Message string            `json:"message,omitempty"`
}

// StatusResponse is the body of GET /competition/status
type StatusResponse struct {
	Status          ParticipantStatus `json:"status"`
	ParticipationID string            `json:"participationId,omitempty"`
}

// StartResponse is the body of POST /competition/start
type StartResponse struct {
	Participation Participation `json:"participation"`
	Questions     []Question    `json:"questions"`
}

// ErrorResponse is the error body every backend handler writes
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
