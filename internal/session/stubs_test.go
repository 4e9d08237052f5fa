package session

import (
	"context"
	"sync"
	"time"

	"compclient/internal/api"
	"compclient/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Set(at time.Time) {
	f.mu.Lock()
	f.now = at
	f.mu.Unlock()
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type submitCall struct {
	questionID string
	answer     string
}

// stubSubmitter records calls; questions in fail are rejected, and when
// gate is set every call blocks until it closes
type stubSubmitter struct {
	mu      sync.Mutex
	calls   []submitCall
	fail    map[string]bool
	failAll bool
	gate    chan struct{}
	entered chan struct{}
}

func (s *stubSubmitter) SubmitAnswer(ctx context.Context, questionID, answer string, ts time.Time) (*model.SubmitAck, error) {
	s.mu.Lock()
	s.calls = append(s.calls, submitCall{questionID: questionID, answer: answer})
	gate := s.gate
	entered := s.entered
	fail := s.failAll || s.fail[questionID]
	s.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, &api.Error{Method: "POST", Path: "/competition/submit/" + questionID, Status: 500, Err: api.ErrServer}
	}
	return &model.SubmitAck{Success: true, QuestionID: questionID, ReceivedAt: ts, Status: model.StatusInProgress}, nil
}

func (s *stubSubmitter) Calls() []submitCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]submitCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// stubStatusAPI serves canned responses and counts calls
type stubStatusAPI struct {
	mu          sync.Mutex
	status      *model.StatusResponse
	statusErr   error
	config      *model.ConfigResponse
	configErr   error
	progress    *model.Participation
	progressErr error
	gate        chan struct{}

	statusCalls   int
	configCalls   int
	progressCalls int
}

func newStubStatusAPI(status model.ParticipantStatus) *stubStatusAPI {
	return &stubStatusAPI{
		status: &model.StatusResponse{Status: status, ParticipationID: "P1"},
		config: &model.ConfigResponse{Success: true, Data: model.CompetitionConfig{
			StartTime:         t0.Add(-time.Hour),
			EntranceDeadline:  t0.Add(time.Hour),
			CompetitionLength: 300,
			Status:            model.PhaseInProgressCanEnter,
		}},
		progress: &model.Participation{ID: "P1", StartTime: t0, Status: model.StatusInProgress},
	}
}

func (s *stubStatusAPI) setStatus(status model.ParticipantStatus) {
	s.mu.Lock()
	s.status = &model.StatusResponse{Status: status, ParticipationID: "P1"}
	s.mu.Unlock()
}

func (s *stubStatusAPI) Status(ctx context.Context) (*model.StatusResponse, error) {
	s.mu.Lock()
	s.statusCalls++
	gate := s.gate
	resp, err := s.status, s.statusErr
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return resp, err
}

func (s *stubStatusAPI) Config(ctx context.Context) (*model.ConfigResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configCalls++
	return s.config, s.configErr
}

func (s *stubStatusAPI) Progress(ctx context.Context) (*model.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressCalls++
	return s.progress, s.progressErr
}

func (s *stubStatusAPI) counts() (status, config, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls, s.configCalls, s.progressCalls
}

// recordingNavigator collects navigations on a channel
type recordingNavigator struct {
	views chan View
}

func newRecordingNavigator() *recordingNavigator {
	return &recordingNavigator{views: make(chan View, 8)}
}

func (n *recordingNavigator) Navigate(view View) {
	n.views <- view
}

func sampleQuestions(n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 1; i <= n; i++ {
		q := model.Question{
			ID:     "q" + string(rune('0'+i)),
			Type:   model.QuestionTypeCode,
			Text:   "Write a function",
			Points: 10,
		}
		if i%2 == 0 {
			q.Type = model.QuestionTypeMCQ
			q.Text = "Pick one"
			q.Options = []string{"A", "B", "C"}
		}
		qs = append(qs, q)
	}
	return qs
}
