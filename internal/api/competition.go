package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"compclient/internal/model"
)

// Me returns the identity behind the current token
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, "GET", "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a token and keeps it for later calls
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	req := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, "POST", "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.SetToken(resp.Token)
	}
	return &resp, nil
}

// Logout ends the server session. The local token is dropped even on failure.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, "GET", "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

// Status returns the participant's competition status
func (c *Client) Status(ctx context.Context) (*model.StatusResponse, error) {
	var resp model.StatusResponse
	if err := c.do(ctx, "GET", "/competition/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Config returns the competition window configuration
func (c *Client) Config(ctx context.Context) (*model.ConfigResponse, error) {
	var resp model.ConfigResponse
	if err := c.do(ctx, "GET", "/competition/config", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start begins a session; the server assigns the start time
func (c *Client) Start(ctx context.Context) (*model.StartResponse, error) {
	var resp model.StartResponse
	if err := c.do(ctx, "POST", "/competition/start", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Progress returns the current participation snapshot
func (c *Client) Progress(ctx context.Context) (*model.Participation, error) {
	var resp model.Participation
	if err := c.do(ctx, "GET", "/competition/progress", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Questions returns the questions of the current participation
func (c *Client) Questions(ctx context.Context) ([]model.Question, error) {
	var resp []model.Question
	if err := c.do(ctx, "GET", "/competition/questions", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SubmitAnswer sends one answer; the timestamp is the client-local submission time
func (c *Client) SubmitAnswer(ctx context.Context, questionID, answer string, ts time.Time) (*model.SubmitAck, error) {
	if questionID == "" {
		return nil, fmt.Errorf("submit: empty question id")
	}
	var ack model.SubmitAck
	path := "/competition/submit/" + url.PathEscape(questionID)
	req := model.SubmitAnswerRequest{Answer: answer, Timestamp: ts.UTC()}
	if err := c.do(ctx, "POST", path, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}
