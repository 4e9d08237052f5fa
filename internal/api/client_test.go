package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"compclient/internal/model"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *sleepRecorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 5*time.Second)
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	return c, rec
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits int32
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			writeJSON(w, http.StatusBadGateway, model.ErrorResponse{Error: "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, model.StatusResponse{Status: model.StatusInProgress})
	}))

	resp, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.Status != model.StatusInProgress {
		t.Fatalf("status = %s", resp.Status)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	got := rec.recorded()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("waits = %v, want %v", got, want)
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var hits int32
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "boom", Message: "Database unavailable"})
	}))

	_, err := c.Config(context.Background())
	if !errors.Is(err, ErrServer) {
		t.Fatalf("err = %v, want ErrServer", err)
	}
	if Message(err, "fallback") != "Database unavailable" {
		t.Fatalf("message = %q", Message(err, "fallback"))
	}
	if n := atomic.LoadInt32(&hits); n != 4 {
		t.Fatalf("hits = %d, want 4", n)
	}
	got := rec.recorded()
	if len(got) != 3 || got[2] != 8*time.Second {
		t.Fatalf("waits = %v", got)
	}
}

func TestClientAuthErrorsAreTerminal(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		var hits int32
		c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			writeJSON(w, status, model.ErrorResponse{Error: "nope"})
		}))

		_, err := c.Progress(context.Background())
		if !IsAuth(err) {
			t.Fatalf("%d: err = %v, want auth error", status, err)
		}
		if n := atomic.LoadInt32(&hits); n != 1 {
			t.Fatalf("%d: hits = %d, want 1", status, n)
		}
		if len(rec.recorded()) != 0 {
			t.Fatalf("%d: should not sleep", status)
		}
	}
}

func TestClientRateLimitRetriesOnce(t *testing.T) {
	var hits int32
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "7")
		writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{Error: "Too many requests"})
	}))

	_, err := c.Status(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %+v", apiErr)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("hits = %d, want 2", n)
	}
	if got := rec.recorded(); len(got) != 1 || got[0] != 7*time.Second {
		t.Fatalf("waits = %v, want [7s]", got)
	}
}

func TestClientRateLimitDefaultWait(t *testing.T) {
	var hits int32
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{Error: "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, model.StatusResponse{Status: model.StatusNotStarted})
	}))

	if _, err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got := rec.recorded(); len(got) != 1 || got[0] != defaultRetryAfter {
		t.Fatalf("waits = %v, want [%v]", got, defaultRetryAfter)
	}
}

func TestClientNotFoundIsNotRetried(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "No participation found"})
	}))

	if _, err := c.Progress(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("hits = %d, want 1", n)
	}
}

func TestClientNetworkErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	rec := &sleepRecorder{}
	c.sleep = rec.sleep

	_, err := c.Status(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if got := rec.recorded(); len(got) != 3 {
		t.Fatalf("waits = %v, want 3 retries", got)
	}
}

func TestClientLoginStoresToken(t *testing.T) {
	var authHeader atomic.Value
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var req model.LoginRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Username != "alice" || req.Password != "pw" {
				writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid credentials"})
				return
			}
			writeJSON(w, http.StatusOK, model.LoginResponse{Token: "tok", User: model.User{ID: "u1", Username: "alice"}})
		case "/auth/me":
			authHeader.Store(r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, model.User{ID: "u1", Username: "alice"})
		case "/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	if _, err := c.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad login err = %v", err)
	}
	if c.Token() != "" {
		t.Fatal("failed login should not set a token")
	}

	if _, err := c.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if got, _ := authHeader.Load().(string); got != "Bearer tok" {
		t.Fatalf("Authorization = %q", got)
	}

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.Token() != "" {
		t.Fatal("Logout should clear the token")
	}
}

func TestSubmitAnswerSendsTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 4, 59, 0, time.UTC)
	var got model.SubmitAnswerRequest
	var path string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, model.SubmitAck{Success: true, QuestionID: "q 1"})
	}))

	ack, err := c.SubmitAnswer(context.Background(), "q 1", "42", ts)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !ack.Success || got.Answer != "42" || !got.Timestamp.Equal(ts) {
		t.Fatalf("ack = %+v body = %+v", ack, got)
	}
	if path != "/competition/submit/q%201" {
		t.Fatalf("path = %q", path)
	}
}

func TestStatusStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:3000/api", "ws://localhost:3000/api/ws/status?token=abc"},
		{"https://comp.example.com/api/", "wss://comp.example.com/api/ws/status?token=abc"},
	}
	for _, tt := range tests {
		got, err := StatusStreamURL(tt.base, "abc")
		if err != nil {
			t.Fatalf("StatusStreamURL(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("StatusStreamURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
