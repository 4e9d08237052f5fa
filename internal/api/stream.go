package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"compclient/internal/model"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	noticeType = "status_changed"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StatusStreamURL derives the websocket endpoint from the API base URL
func StatusStreamURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/status"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// SubscribeStatus opens the push channel for status change notices.
// The returned channel is closed when ctx ends or the connection drops.
// Notices are hints only; callers still confirm state by polling.
func (c *Client) SubscribeStatus(ctx context.Context) (<-chan model.StatusNotice, error) {
	endpoint, err := StatusStreamURL(c.baseURL, c.Token())
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial status stream: %w", err)
	}
	log.Printf("[API Client] Status stream connected")

	notices := make(chan model.StatusNotice, 8)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(notices)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPingHandler(func(data string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[API Client] Status stream error: %v", err)
				}
				return
			}

			var env envelope
			if err := json.Unmarshal(data, &env); err != nil || env.Type != noticeType {
				continue
			}
			var notice model.StatusNotice
			if err := json.Unmarshal(env.Payload, &notice); err != nil {
				continue
			}

			select {
			case notices <- notice:
			case <-ctx.Done():
				return
			}
		}
	}()

	return notices, nil
}
