package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"compclient/internal/api"
	"compclient/internal/cache"
	"compclient/internal/model"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 10 * time.Second

	throttleBase = 5 * time.Second
	throttleCap  = 60 * time.Second

	ConflictMessage   = "Another user is already participating in this competition"
	ConnectionMessage = "Failed to check competition status"
	UpdatesMessage    = "Error fetching updates. Will retry..."
	BadConfigMessage  = "Invalid config response format"
)

const (
	callStatus   = "status"
	callConfig   = "config"
	callProgress = "progress"
)

// StatusAPI is the slice of the backend the reconciler reads
type StatusAPI interface {
	Status(ctx context.Context) (*model.StatusResponse, error)
	Config(ctx context.Context) (*model.ConfigResponse, error)
	Progress(ctx context.Context) (*model.Participation, error)
}

// ActionKind is what the session should do after a poll
type ActionKind int

const (
	ActionContinue ActionKind = iota
	ActionRedirectResults
	ActionRedirectDashboard
	ActionRedirectLogin
	ActionError
)

func (k ActionKind) String() string {
	switch k {
	case ActionContinue:
		return "continue"
	case ActionRedirectResults:
		return "redirect_to_results"
	case ActionRedirectDashboard:
		return "redirect_to_dashboard"
	case ActionRedirectLogin:
		return "redirect_to_login"
	case ActionError:
		return "error"
	}
	return "unknown"
}

// Action is the outcome of one poll
type Action struct {
	Kind    ActionKind
	Message string // set for ActionError
	Warning string // non-blocking connection trouble

	Status   *model.StatusResponse
	Config   *model.CompetitionConfig
	Progress *model.Participation // set only when the snapshot changed

	// Skipped is set when the poll overlapped a running one
	Skipped bool
}

// PollState guards against overlapping polls
type PollState int

const (
	PollIdle PollState = iota
	PollInFlight
)

type callBackoff struct {
	delay time.Duration
	until time.Time
}

// Reconciler compares remote status against local assumptions
type Reconciler struct {
	api   StatusAPI
	flags cache.FlagStore
	now   func() time.Time

	mu            sync.Mutex
	state         PollState
	expectSession bool
	localStatus   model.ParticipantStatus
	progress      *model.Participation

	bmu     sync.Mutex
	backoff map[string]*callBackoff

	trigger chan struct{}
}

// NewReconciler creates a reconciler over the given backend and flag store
func NewReconciler(statusAPI StatusAPI, flags cache.FlagStore) *Reconciler {
	return &Reconciler{
		api:     statusAPI,
		flags:   flags,
		now:     time.Now,
		backoff: make(map[string]*callBackoff),
		trigger: make(chan struct{}, 1),
	}
}

// ExpectSession tells the reconciler a session view is mounted and which
// status the local session believes it is in
func (r *Reconciler) ExpectSession(expect bool, local model.ParticipantStatus) {
	r.mu.Lock()
	r.expectSession = expect
	r.localStatus = local
	r.mu.Unlock()
}

// State returns the poll guard state
func (r *Reconciler) State() PollState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == PollInFlight {
		return false
	}
	r.state = PollInFlight
	return true
}

func (r *Reconciler) end() {
	r.mu.Lock()
	r.state = PollIdle
	r.mu.Unlock()
}

func (r *Reconciler) allowed(call string) bool {
	r.bmu.Lock()
	defer r.bmu.Unlock()
	b, ok := r.backoff[call]
	return !ok || !r.now().Before(b.until)
}

// throttled doubles the call's delay up to the cap, never below Retry-After
func (r *Reconciler) throttled(call string, err error) {
	r.bmu.Lock()
	defer r.bmu.Unlock()
	b, ok := r.backoff[call]
	if !ok {
		b = &callBackoff{delay: throttleBase}
		r.backoff[call] = b
	} else {
		b.delay *= 2
		if b.delay > throttleCap {
			b.delay = throttleCap
		}
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > b.delay {
		b.delay = apiErr.RetryAfter
	}
	b.until = r.now().Add(b.delay)
	log.Printf("[Reconciler] %s throttled, backing off %v", call, b.delay)
}

func (r *Reconciler) succeeded(call string) {
	r.bmu.Lock()
	delete(r.backoff, call)
	r.bmu.Unlock()
}

// BackoffFor returns the current backoff delay for a call, zero when none
func (r *Reconciler) BackoffFor(call string) time.Duration {
	r.bmu.Lock()
	defer r.bmu.Unlock()
	if b, ok := r.backoff[call]; ok {
		return b.delay
	}
	return 0
}

// Poll fetches status and config, and progress while a session runs, and
// decides what the local state machine should do
func (r *Reconciler) Poll(ctx context.Context) Action {
	if !r.begin() {
		return Action{Kind: ActionContinue, Skipped: true}
	}
	defer r.end()

	marker, err := r.flags.ActiveParticipation(ctx)
	if err != nil {
		log.Printf("[Reconciler] WARNING: failed to read active participation: %v", err)
	}

	var (
		status *model.StatusResponse
		cfg    *model.ConfigResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	if r.allowed(callStatus) {
		g.Go(func() error {
			s, err := r.api.Status(gctx)
			if err != nil {
				return r.callFailed(callStatus, err)
			}
			r.succeeded(callStatus)
			status = s
			return nil
		})
	}
	if r.allowed(callConfig) {
		g.Go(func() error {
			c, err := r.api.Config(gctx)
			if err != nil {
				return r.callFailed(callConfig, err)
			}
			r.succeeded(callConfig)
			cfg = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r.errorAction(err)
	}

	action := Action{Kind: ActionContinue, Status: status}
	if cfg != nil {
		if !cfg.Success {
			return Action{Kind: ActionError, Message: BadConfigMessage}
		}
		action.Config = &cfg.Data
	}
	if status == nil {
		return action
	}

	r.mu.Lock()
	expect := r.expectSession
	local := r.localStatus
	r.mu.Unlock()

	if marker != "" && status.Status == model.StatusNotStarted {
		log.Printf("[Reconciler] Remote reports no session, clearing active participation %s", marker)
		if err := r.flags.ClearActiveParticipation(ctx); err != nil {
			log.Printf("[Reconciler] WARNING: failed to clear active participation: %v", err)
		}
		if expect {
			action.Kind = ActionRedirectDashboard
		}
		return action
	}

	if status.Status.IsRunning() && marker == "" {
		return Action{Kind: ActionError, Message: ConflictMessage, Status: status}
	}

	if status.Status == model.StatusCompleted && local != model.StatusCompleted {
		action.Kind = ActionRedirectResults
		return action
	}

	if status.Status.IsRunning() && r.allowed(callProgress) {
		r.fetchProgress(ctx, &action, expect)
	}
	return action
}

func (r *Reconciler) fetchProgress(ctx context.Context, action *Action, expect bool) {
	p, err := r.api.Progress(ctx)
	switch {
	case err == nil:
		r.succeeded(callProgress)
		r.mu.Lock()
		if progressChanged(r.progress, p) {
			r.progress = p
			action.Progress = p
		}
		r.mu.Unlock()
	case errors.Is(err, api.ErrNotFound):
		log.Printf("[Reconciler] No participation on the backend")
		if err := r.flags.ClearActiveParticipation(ctx); err != nil {
			log.Printf("[Reconciler] WARNING: failed to clear active participation: %v", err)
		}
		if expect {
			action.Kind = ActionRedirectDashboard
		}
	case errors.Is(err, api.ErrRateLimited):
		r.throttled(callProgress, err)
	case api.IsAuth(err):
		action.Kind = ActionRedirectLogin
	default:
		log.Printf("[Reconciler] Error fetching competition updates: %v", err)
		action.Warning = UpdatesMessage
	}
}

// callFailed records throttling and swallows it so sibling calls keep going
func (r *Reconciler) callFailed(call string, err error) error {
	if errors.Is(err, api.ErrRateLimited) {
		r.throttled(call, err)
		return nil
	}
	return err
}

func (r *Reconciler) errorAction(err error) Action {
	if api.IsAuth(err) {
		return Action{Kind: ActionRedirectLogin}
	}
	if errors.Is(err, context.Canceled) {
		return Action{Kind: ActionContinue, Skipped: true}
	}
	log.Printf("[Reconciler] Error checking status: %v", err)
	return Action{Kind: ActionError, Message: api.Message(err, ConnectionMessage)}
}

func progressChanged(prev, next *model.Participation) bool {
	if prev == nil {
		return true
	}
	return prev.ID != next.ID ||
		prev.Status != next.Status ||
		!prev.StartTime.Equal(next.StartTime) ||
		len(prev.Answers) != len(next.Answers)
}

// Trigger requests an immediate poll from Run; extra triggers coalesce
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Watch turns push notices into immediate polls until the channel closes
func (r *Reconciler) Watch(ctx context.Context, notices <-chan model.StatusNotice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			log.Printf("[Reconciler] Push notice: status %s", n.Status)
			r.Trigger()
		}
	}
}

// Run polls immediately, then every interval and on Trigger, until ctx ends
func (r *Reconciler) Run(ctx context.Context, interval time.Duration, handle func(Action)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	poll := func() {
		a := r.Poll(ctx)
		if ctx.Err() != nil || a.Skipped {
			return
		}
		handle(a)
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		case <-r.trigger:
			poll()
		}
	}
}
