package service

import "compclient/internal/model"

// Broadcaster pushes status changes to connected participants (avoids import cycle)
type Broadcaster interface {
	NotifyStatus(userID string, notice model.StatusNotice)
}

type nopBroadcaster struct{}

func (nopBroadcaster) NotifyStatus(string, model.StatusNotice) {}
