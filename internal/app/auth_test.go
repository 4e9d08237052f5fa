package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"compclient/internal/api"
	"compclient/internal/model"
)

type stubAuthAPI struct {
	meErrs     []error
	meCalls    int
	loginErr   error
	loginCalls int
	logoutErr  error
}

func (s *stubAuthAPI) Me(ctx context.Context) (*model.User, error) {
	s.meCalls++
	if len(s.meErrs) > 0 {
		err := s.meErrs[0]
		s.meErrs = s.meErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &model.User{ID: "u1", Username: "alice"}, nil
}

func (s *stubAuthAPI) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	s.loginCalls++
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &model.LoginResponse{Token: "tok", User: model.User{ID: "u1", Username: username}}, nil
}

func (s *stubAuthAPI) Logout(ctx context.Context) error {
	return s.logoutErr
}

func newTestAuth(stub *stubAuthAPI) (*Auth, *[]time.Duration) {
	var waits []time.Duration
	a := NewAuth(stub)
	a.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return a, &waits
}

var (
	errUnauthorized = &api.Error{Method: "GET", Path: "/auth/me", Status: 401, Err: api.ErrUnauthorized}
	errServer       = &api.Error{Method: "GET", Path: "/auth/me", Status: 500, Err: api.ErrServer}
)

func TestCheckAuthLoggedOutIsNotAnError(t *testing.T) {
	stub := &stubAuthAPI{meErrs: []error{errUnauthorized}}
	a, waits := newTestAuth(stub)

	user, err := a.CheckAuth(context.Background())
	if err != nil || user != nil {
		t.Fatalf("CheckAuth = %v, %v; want nil, nil", user, err)
	}
	if stub.meCalls != 1 || len(*waits) != 0 {
		t.Fatalf("401 should not be retried: calls=%d waits=%v", stub.meCalls, *waits)
	}
}

func TestCheckAuthRetriesTransientFailures(t *testing.T) {
	stub := &stubAuthAPI{meErrs: []error{errServer, errServer}}
	a, waits := newTestAuth(stub)

	user, err := a.CheckAuth(context.Background())
	if err != nil || user == nil || user.Username != "alice" {
		t.Fatalf("CheckAuth = %v, %v", user, err)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*waits) != 2 || (*waits)[0] != want[0] || (*waits)[1] != want[1] {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	if a.User() == nil {
		t.Fatal("user should be remembered")
	}
}

func TestCheckAuthGivesUp(t *testing.T) {
	stub := &stubAuthAPI{meErrs: []error{errServer, errServer, errServer, errServer, errServer}}
	a, _ := newTestAuth(stub)

	if _, err := a.CheckAuth(context.Background()); !errors.Is(err, api.ErrServer) {
		t.Fatalf("err = %v, want ErrServer", err)
	}
	if stub.meCalls != authRetries+1 {
		t.Fatalf("calls = %d, want %d", stub.meCalls, authRetries+1)
	}
}

func TestLoginAndLogout(t *testing.T) {
	stub := &stubAuthAPI{}
	a, _ := newTestAuth(stub)

	user, err := a.Login(context.Background(), "alice", "pw")
	if err != nil || user.Username != "alice" {
		t.Fatalf("Login = %v, %v", user, err)
	}

	stub.logoutErr = errServer
	if err := a.Logout(context.Background()); err == nil {
		t.Fatal("Logout should report the server failure")
	}
	if a.User() != nil {
		t.Fatal("Logout should clear the user even on failure")
	}
}

func TestLoginBadCredentialsNotRetried(t *testing.T) {
	stub := &stubAuthAPI{loginErr: errUnauthorized}
	a, _ := newTestAuth(stub)

	if _, err := a.Login(context.Background(), "alice", "bad"); !api.IsAuth(err) {
		t.Fatalf("err = %v", err)
	}
	if stub.loginCalls != 1 {
		t.Fatalf("calls = %d, want 1", stub.loginCalls)
	}
}
