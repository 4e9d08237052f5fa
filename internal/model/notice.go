package model

import "time"

// StatusNotice is pushed to a participant when their status changes on the backend
type StatusNotice struct {
	UserID          string            `json:"userId"`
	ParticipationID string            `json:"participationId,omitempty"`
	Status          ParticipantStatus `json:"status"`
	At              time.Time         `json:"at"`
}
