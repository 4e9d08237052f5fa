package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"compclient/internal/api"
	"compclient/internal/cache"
	"compclient/internal/model"
	"compclient/internal/session"
)

var (
	ErrBadConfig     = errors.New("invalid config response format")
	ErrEntryClosed   = errors.New("competition entry period has ended")
	ErrAlreadyActive = errors.New("you already have an active competition session")
	ErrNoQuestions   = errors.New("no questions available")
)

const (
	LoadFailedMessage  = "Failed to load competition data. Please try again later."
	StartFailedMessage = "Failed to start competition"

	refreshThrottle = 5 * time.Second
)

// ThrottleState gates dashboard refreshes triggered by the countdown
type ThrottleState int

const (
	ThrottleOpen ThrottleState = iota
	ThrottleClosed
)

func (s ThrottleState) String() string {
	if s == ThrottleClosed {
		return "closed"
	}
	return "open"
}

// DashboardAPI is the slice of the backend the dashboard reads
type DashboardAPI interface {
	Status(ctx context.Context) (*model.StatusResponse, error)
	Config(ctx context.Context) (*model.ConfigResponse, error)
	Start(ctx context.Context) (*model.StartResponse, error)
	Progress(ctx context.Context) (*model.Participation, error)
	Questions(ctx context.Context) ([]model.Question, error)
}

// Overview is what the dashboard shows
type Overview struct {
	Config model.CompetitionConfig
	Status model.ParticipantStatus

	// Redirect is set when the participant belongs on another view
	Redirect session.View

	// Conflict is set when a session runs on the backend that this client
	// did not start
	Conflict bool
}

// Phase is the participant status when it is running or completed, else the
// competition phase
func (o *Overview) Phase() string {
	if o.Status.IsRunning() || o.Status == model.StatusCompleted {
		return string(o.Status)
	}
	return string(o.Config.Status)
}

// Started is a freshly started or resumed session
type Started struct {
	Session   *model.Session
	Questions []model.Question
}

// Dashboard loads the competition overview and starts sessions
type Dashboard struct {
	api           DashboardAPI
	flags         cache.FlagStore
	defaultLength time.Duration
	now           func() time.Time

	mu            sync.Mutex
	overview      *Overview
	throttle      ThrottleState
	throttleUntil time.Time
}

// NewDashboard creates a dashboard; defaultLength applies when the backend
// config carries no competition length
func NewDashboard(dashAPI DashboardAPI, flags cache.FlagStore, defaultLength time.Duration) *Dashboard {
	return &Dashboard{
		api:           dashAPI,
		flags:         flags,
		defaultLength: defaultLength,
		now:           time.Now,
	}
}

// Overview returns the last loaded overview, nil before the first Load
func (d *Dashboard) Overview() *Overview {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overview
}

// Load fetches the config, then the participant status
func (d *Dashboard) Load(ctx context.Context) (*Overview, error) {
	log.Printf("[Dashboard] Loading dashboard")
	cfg, err := d.api.Config(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Success {
		return nil, ErrBadConfig
	}
	status, err := d.api.Status(ctx)
	if err != nil {
		return nil, err
	}

	o := &Overview{Config: cfg.Data, Status: status.Status}
	switch {
	case status.Status == model.StatusCompleted:
		o.Redirect = session.ViewResults
	case status.Status.IsRunning():
		marker, err := d.flags.ActiveParticipation(ctx)
		if err != nil {
			log.Printf("[Dashboard] WARNING: failed to read active participation: %v", err)
		}
		if marker == "" {
			o.Conflict = true
		} else {
			o.Redirect = session.ViewSession
		}
	}

	d.mu.Lock()
	d.overview = o
	d.mu.Unlock()
	return o, nil
}

// Countdown renders the time to the next phase boundary as "Xh Ym Zs":
// the start time while upcoming, the entrance deadline while entry is open.
// ok is false when there is nothing to count down to or the boundary has
// passed, in which case the caller should Refresh.
func (d *Dashboard) Countdown(now time.Time) (text string, ok bool) {
	d.mu.Lock()
	o := d.overview
	d.mu.Unlock()
	if o == nil {
		return "", false
	}

	var target time.Time
	switch o.Config.Status {
	case model.PhaseUpcoming:
		target = o.Config.StartTime
	case model.PhaseInProgressCanEnter:
		target = o.Config.EntranceDeadline
	default:
		return "", false
	}

	distance := target.Sub(now)
	if distance <= 0 {
		return "", false
	}
	total := int64(distance / time.Second)
	return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60), true
}

// ThrottleState returns the refresh gate state
func (d *Dashboard) ThrottleState() ThrottleState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.throttle
}

// Refresh reloads the overview at most once per refreshThrottle. It reports
// whether a load actually ran.
func (d *Dashboard) Refresh(ctx context.Context) (bool, error) {
	d.mu.Lock()
	now := d.now()
	if d.throttle == ThrottleClosed && now.Before(d.throttleUntil) {
		d.mu.Unlock()
		return false, nil
	}
	d.throttle = ThrottleClosed
	d.throttleUntil = now.Add(refreshThrottle)
	d.mu.Unlock()

	if _, err := d.Load(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Start re-checks that entry is open and no session is running, starts a
// session and records the active participation marker
func (d *Dashboard) Start(ctx context.Context) (*Started, error) {
	cfg, err := d.api.Config(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Success || cfg.Data.Status != model.PhaseInProgressCanEnter {
		return nil, ErrEntryClosed
	}

	status, err := d.api.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status.Status.IsRunning() {
		return nil, ErrAlreadyActive
	}

	resp, err := d.api.Start(ctx)
	if err != nil {
		switch {
		case errors.Is(err, api.ErrConflict):
			return nil, fmt.Errorf("%w: %v", ErrAlreadyActive, err)
		case errors.Is(err, api.ErrUnprocessable), errors.Is(err, api.ErrForbidden):
			return nil, fmt.Errorf("%w: %v", ErrEntryClosed, err)
		case errors.Is(err, api.ErrNotFound):
			return nil, fmt.Errorf("%w: %v", ErrNoQuestions, err)
		}
		return nil, err
	}
	if len(resp.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	if err := d.flags.SetActiveParticipation(ctx, resp.Participation.ID); err != nil {
		return nil, fmt.Errorf("failed to record active participation: %w", err)
	}
	log.Printf("[Dashboard] Started participation %s with %d questions", resp.Participation.ID, len(resp.Questions))

	return &Started{
		Session:   model.NewSession(&resp.Participation, d.lengthOf(&cfg.Data)),
		Questions: resp.Questions,
	}, nil
}

// Resume rebuilds a running session after a client restart. It only
// succeeds while the local marker matches the backend participation.
func (d *Dashboard) Resume(ctx context.Context) (*Started, error) {
	marker, err := d.flags.ActiveParticipation(ctx)
	if err != nil {
		return nil, err
	}
	if marker == "" {
		return nil, session.ErrNoActiveSession
	}

	p, err := d.api.Progress(ctx)
	if err != nil {
		return nil, err
	}
	if p.ID != marker {
		// stale marker from an older participation
		if err := d.flags.ClearActiveParticipation(ctx); err != nil {
			log.Printf("[Dashboard] WARNING: failed to clear active participation: %v", err)
		}
		return nil, fmt.Errorf("%w: participation %s is not %s", session.ErrNoActiveSession, p.ID, marker)
	}
	questions, err := d.api.Questions(ctx)
	if err != nil {
		return nil, err
	}

	length := d.defaultLength
	d.mu.Lock()
	if d.overview != nil {
		length = d.lengthOf(&d.overview.Config)
	}
	d.mu.Unlock()

	return &Started{Session: model.NewSession(p, length), Questions: questions}, nil
}

func (d *Dashboard) lengthOf(cfg *model.CompetitionConfig) time.Duration {
	if l := cfg.Length(); l > 0 {
		return l
	}
	return d.defaultLength
}

// StartMessage maps a Start error to the text shown to the user
func StartMessage(err error) string {
	switch {
	case errors.Is(err, ErrEntryClosed):
		return "Competition entry period has ended"
	case errors.Is(err, ErrAlreadyActive):
		return "You already have an active competition session"
	case errors.Is(err, ErrNoQuestions):
		return "Failed to start competition: No questions available"
	}
	return api.Message(err, StartFailedMessage)
}
