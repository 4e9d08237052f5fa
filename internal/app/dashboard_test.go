package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"compclient/internal/api"
	"compclient/internal/cache"
	"compclient/internal/model"
	"compclient/internal/session"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubDashboardAPI struct {
	phase       model.CompetitionPhase
	success     bool
	status      model.ParticipantStatus
	startErr    error
	questions   []model.Question
	configCalls int
	startCalls  int
}

func newStubDashboardAPI() *stubDashboardAPI {
	return &stubDashboardAPI{
		phase:   model.PhaseInProgressCanEnter,
		success: true,
		status:  model.StatusNotStarted,
		questions: []model.Question{
			{ID: "q1", Type: model.QuestionTypeCode, Text: "Reverse a string", Points: 10},
		},
	}
}

func (s *stubDashboardAPI) Config(ctx context.Context) (*model.ConfigResponse, error) {
	s.configCalls++
	return &model.ConfigResponse{Success: s.success, Data: model.CompetitionConfig{
		StartTime:         t0,
		EntranceDeadline:  t0.Add(30 * time.Minute),
		AbsoluteEndTime:   t0.Add(35 * time.Minute),
		CompetitionLength: 300,
		Status:            s.phase,
	}}, nil
}

func (s *stubDashboardAPI) Status(ctx context.Context) (*model.StatusResponse, error) {
	return &model.StatusResponse{Status: s.status}, nil
}

func (s *stubDashboardAPI) Start(ctx context.Context) (*model.StartResponse, error) {
	s.startCalls++
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &model.StartResponse{
		Participation: model.Participation{ID: "P1", StartTime: t0.Add(time.Minute), Status: model.StatusInProgress},
		Questions:     s.questions,
	}, nil
}

func (s *stubDashboardAPI) Progress(ctx context.Context) (*model.Participation, error) {
	return &model.Participation{ID: "P1", StartTime: t0.Add(time.Minute), Status: model.StatusInProgress}, nil
}

func (s *stubDashboardAPI) Questions(ctx context.Context) ([]model.Question, error) {
	return s.questions, nil
}

func TestDashboardLoadRedirects(t *testing.T) {
	tests := []struct {
		status model.ParticipantStatus
		want   session.View
		phase  string
	}{
		{model.StatusNotStarted, "", string(model.PhaseInProgressCanEnter)},
		{model.StatusInProgress, session.ViewSession, string(model.StatusInProgress)},
		{model.StatusCompleted, session.ViewResults, string(model.StatusCompleted)},
	}
	for _, tt := range tests {
		stub := newStubDashboardAPI()
		stub.status = tt.status
		flags := cache.NewMemoryFlagStore()
		flags.SetActiveParticipation(context.Background(), "P1")
		d := NewDashboard(stub, flags, 300*time.Second)

		o, err := d.Load(context.Background())
		if err != nil {
			t.Fatalf("%s: Load: %v", tt.status, err)
		}
		if o.Redirect != tt.want || o.Phase() != tt.phase {
			t.Fatalf("%s: redirect=%q phase=%q", tt.status, o.Redirect, o.Phase())
		}
	}
}

func TestDashboardLoadRunningElsewhereIsConflict(t *testing.T) {
	stub := newStubDashboardAPI()
	stub.status = model.StatusInProgress
	d := NewDashboard(stub, cache.NewMemoryFlagStore(), 300*time.Second)

	o, err := d.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !o.Conflict || o.Redirect != "" {
		t.Fatalf("overview = %+v, want conflict without redirect", o)
	}
}

func TestDashboardLoadBadConfig(t *testing.T) {
	stub := newStubDashboardAPI()
	stub.success = false
	d := NewDashboard(stub, cache.NewMemoryFlagStore(), 300*time.Second)

	if _, err := d.Load(context.Background()); !errors.Is(err, ErrBadConfig) {
		t.Fatalf("err = %v, want ErrBadConfig", err)
	}
}

func TestDashboardCountdown(t *testing.T) {
	stub := newStubDashboardAPI()
	d := NewDashboard(stub, cache.NewMemoryFlagStore(), 300*time.Second)
	if _, ok := d.Countdown(t0); ok {
		t.Fatal("countdown before Load should be empty")
	}
	d.Load(context.Background())

	text, ok := d.Countdown(t0.Add(-time.Hour - 2*time.Minute))
	if !ok || text != "1h 32m 0s" {
		t.Fatalf("entry countdown = %q, %v", text, ok)
	}
	if _, ok := d.Countdown(t0.Add(30 * time.Minute)); ok {
		t.Fatal("countdown at the deadline should stop")
	}

	stub.phase = model.PhaseUpcoming
	d.Load(context.Background())
	text, ok = d.Countdown(t0.Add(-65 * time.Second))
	if !ok || text != "0h 1m 5s" {
		t.Fatalf("start countdown = %q, %v", text, ok)
	}

	stub.phase = model.PhaseInProgressCannotEnter
	d.Load(context.Background())
	if _, ok := d.Countdown(t0); ok {
		t.Fatal("closed entry has no countdown")
	}
}

func TestDashboardRefreshThrottle(t *testing.T) {
	stub := newStubDashboardAPI()
	d := NewDashboard(stub, cache.NewMemoryFlagStore(), 300*time.Second)
	now := t0
	d.now = func() time.Time { return now }
	ctx := context.Background()

	if ran, err := d.Refresh(ctx); !ran || err != nil {
		t.Fatalf("first refresh = %v, %v", ran, err)
	}
	if d.ThrottleState() != ThrottleClosed {
		t.Fatal("throttle should close after a refresh")
	}

	now = now.Add(4 * time.Second)
	if ran, _ := d.Refresh(ctx); ran {
		t.Fatal("refresh inside the window should be skipped")
	}

	now = now.Add(time.Second)
	if ran, _ := d.Refresh(ctx); !ran {
		t.Fatal("refresh after the window should run")
	}
	if stub.configCalls != 2 {
		t.Fatalf("config fetched %d times, want 2", stub.configCalls)
	}
}

func TestDashboardStart(t *testing.T) {
	stub := newStubDashboardAPI()
	flags := cache.NewMemoryFlagStore()
	d := NewDashboard(stub, flags, time.Minute)

	started, err := d.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id, _ := flags.ActiveParticipation(context.Background()); id != "P1" {
		t.Fatalf("marker = %q, want P1", id)
	}
	end, ok := started.Session.EndTime()
	if !ok || !end.Equal(t0.Add(time.Minute+300*time.Second)) {
		t.Fatalf("end = %v, %v", end, ok)
	}
	if len(started.Questions) != 1 {
		t.Fatalf("questions = %d", len(started.Questions))
	}
}

func TestDashboardStartRefusals(t *testing.T) {
	closed := newStubDashboardAPI()
	closed.phase = model.PhaseInProgressCannotEnter

	active := newStubDashboardAPI()
	active.status = model.StatusInProgress

	empty := newStubDashboardAPI()
	empty.questions = nil

	conflict := newStubDashboardAPI()
	conflict.startErr = &api.Error{Method: "POST", Path: "/competition/start", Status: 409, Err: api.ErrConflict}

	lateEntry := newStubDashboardAPI()
	lateEntry.startErr = &api.Error{Method: "POST", Path: "/competition/start", Status: 422, Err: api.ErrUnprocessable}

	noQuestions := newStubDashboardAPI()
	noQuestions.startErr = &api.Error{Method: "POST", Path: "/competition/start", Status: 404, Err: api.ErrNotFound}

	tests := []struct {
		name string
		stub *stubDashboardAPI
		want error
	}{
		{"entry closed", closed, ErrEntryClosed},
		{"server entry closed", lateEntry, ErrEntryClosed},
		{"server has no questions", noQuestions, ErrNoQuestions},
		{"already active", active, ErrAlreadyActive},
		{"no questions", empty, ErrNoQuestions},
		{"server conflict", conflict, ErrAlreadyActive},
	}
	for _, tt := range tests {
		flags := cache.NewMemoryFlagStore()
		d := NewDashboard(tt.stub, flags, time.Minute)

		_, err := d.Start(context.Background())
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
		if id, _ := flags.ActiveParticipation(context.Background()); id != "" {
			t.Fatalf("%s: marker set on failure", tt.name)
		}
		if StartMessage(err) == "" {
			t.Fatalf("%s: empty message", tt.name)
		}
	}
	if closed.startCalls != 0 || active.startCalls != 0 {
		t.Fatal("start should not be called when the re-check fails")
	}
}

func TestDashboardResume(t *testing.T) {
	stub := newStubDashboardAPI()
	flags := cache.NewMemoryFlagStore()
	d := NewDashboard(stub, flags, 300*time.Second)

	if _, err := d.Resume(context.Background()); !errors.Is(err, session.ErrNoActiveSession) {
		t.Fatalf("resume without marker err = %v", err)
	}

	flags.SetActiveParticipation(context.Background(), "P1")
	started, err := d.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if started.Session.ParticipationID != "P1" || len(started.Questions) != 1 {
		t.Fatalf("resumed = %+v", started)
	}
}
