package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"compclient/internal/cache"
	"compclient/internal/model"
)

// State is the session view's state machine: loading -> active -> submitting -> done
type State int

const (
	StateLoading State = iota
	StateActive
	StateSubmitting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	}
	return "unknown"
}

var (
	ErrNoActiveSession   = errors.New("no active session")
	ErrNoQuestions       = errors.New("no questions available")
	ErrNoDeadline        = errors.New("session has no start time")
	ErrNotActive         = errors.New("session is not active")
	ErrSessionDone       = errors.New("session is over")
	ErrSubmitInProgress  = errors.New("submission in progress")
	ErrBlocked           = errors.New("session is blocked by an error")
	ErrNotMultipleChoice = errors.New("current question is not multiple choice")
	ErrNoSuchOption      = errors.New("no such option")
)

const (
	DefaultResultsDelay = time.Second

	SubmitFailedMessage = "Failed to submit answers. Please try again."
	NoQuestionsMessage  = "No questions available. Please try again."
	NoDeadlineMessage   = "The competition session has not started."
)

// Options tunes a Controller; zero values take defaults
type Options struct {
	PollInterval time.Duration
	ResultsDelay time.Duration
	Now          func() time.Time
}

// Summary counts per-question statuses
type Summary struct {
	Total      int
	Answered   int
	Flagged    int
	Unanswered int
}

// Controller owns one session view. It wires clock expiry, user
// confirmation and unload into the coordinator's single sweep, and the
// reconciler's verdicts into navigation. Navigator implementations must not
// call Close synchronously.
type Controller struct {
	session     *model.Session
	questions   []model.Question
	store       *AnswerStore
	coordinator *Coordinator
	reconciler  *Reconciler
	flags       cache.FlagStore
	nav         Navigator
	clock       *DeadlineClock
	opts        Options

	mu            sync.Mutex
	state         State
	index         int
	confirmOpen   bool
	errMsg        string
	errFromRemote bool
	warning       string
	navigated     bool
	resultsTimer  *time.Timer
	sweepDone     <-chan struct{}
	runCtx        context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewController builds a controller for sess; nothing runs until Mount
func NewController(
	sess *model.Session,
	questions []model.Question,
	submitter Submitter,
	statusAPI StatusAPI,
	flags cache.FlagStore,
	nav Navigator,
	opts Options,
) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ResultsDelay <= 0 {
		opts.ResultsDelay = DefaultResultsDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if sess == nil {
		sess = &model.Session{}
	}

	store := NewAnswerStore()
	coordinator := NewCoordinator(store, submitter)
	coordinator.now = opts.Now
	reconciler := NewReconciler(statusAPI, flags)
	reconciler.now = opts.Now

	c := &Controller{
		session:     sess,
		questions:   questions,
		store:       store,
		coordinator: coordinator,
		reconciler:  reconciler,
		flags:       flags,
		nav:         nav,
		opts:        opts,
		runCtx:      context.Background(),
	}
	c.clock = NewDeadlineClock(sess.StartTime, sess.Duration, c.onExpire)
	c.clock.now = opts.Now
	return c
}

// Mount enters the active state and starts the clock and reconciler.
// Without an active participation marker it redirects to the dashboard.
func (c *Controller) Mount(ctx context.Context) error {
	marker, err := c.flags.ActiveParticipation(ctx)
	if err != nil {
		log.Printf("[Session] WARNING: failed to read active participation: %v", err)
	}
	if marker == "" {
		c.navigate(ViewDashboard)
		return ErrNoActiveSession
	}

	if len(c.questions) == 0 {
		c.fail(NoQuestionsMessage)
		return ErrNoQuestions
	}
	for i := range c.questions {
		if err := c.questions[i].Validate(); err != nil {
			c.fail(fmt.Sprintf("Invalid question data: %v", err))
			return err
		}
	}
	if c.clock.Inert() {
		c.fail(NoDeadlineMessage)
		return ErrNoDeadline
	}

	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return nil
	}
	c.state = StateActive
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx = runCtx
	c.cancel = cancel
	c.mu.Unlock()

	c.reconciler.ExpectSession(true, c.session.Status)
	log.Printf("[Session] Active: participation %s, %d questions, deadline %s",
		marker, len(c.questions), c.clock.EndTime().Format(time.RFC3339))

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.clock.Run(runCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.reconciler.Run(runCtx, c.opts.PollInterval, c.handleAction)
	}()
	return nil
}

// Close stops the clock, the reconciler and any pending results redirect
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.resultsTimer != nil {
		c.resultsTimer.Stop()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Reconciler exposes the reconciler for push notices
func (c *Controller) Reconciler() *Reconciler {
	return c.reconciler
}

func (c *Controller) fail(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.errFromRemote = false
	c.mu.Unlock()
	log.Printf("[Session] ERROR: %s", msg)
}

// navigate sends the user away at most once per controller
func (c *Controller) navigate(view View) {
	c.mu.Lock()
	if c.navigated {
		c.mu.Unlock()
		return
	}
	c.navigated = true
	if c.resultsTimer != nil {
		c.resultsTimer.Stop()
	}
	c.mu.Unlock()

	log.Printf("[Session] Navigating to %s", view)
	c.nav.Navigate(view)
}

func (c *Controller) scheduleResultsLocked() {
	if c.navigated || c.resultsTimer != nil {
		return
	}
	c.resultsTimer = time.AfterFunc(c.opts.ResultsDelay, func() {
		c.navigate(ViewResults)
	})
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the user-visible error, empty when none
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Warning returns non-blocking connection trouble from the last poll
func (c *Controller) Warning() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warning
}

// Countdown returns the rendered time remaining
func (c *Controller) Countdown() string {
	return c.clock.Display()
}

// EndTime returns the session deadline
func (c *Controller) EndTime() time.Time {
	return c.clock.EndTime()
}

// Index returns the current question index
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// QuestionCount returns the number of questions
func (c *Controller) QuestionCount() int {
	return len(c.questions)
}

// Questions returns the session's questions
func (c *Controller) Questions() []model.Question {
	return c.questions
}

// Current returns the question at the current index
func (c *Controller) Current() (model.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.questions) == 0 {
		return model.Question{}, false
	}
	return c.questions[c.index], true
}

// CurrentAnswer returns the stored answer for the current question
func (c *Controller) CurrentAnswer() string {
	q, ok := c.Current()
	if !ok {
		return ""
	}
	return c.store.Value(q.ID)
}

// StatusOf returns the indicator for one question
func (c *Controller) StatusOf(questionID string) QuestionStatus {
	return c.store.StatusOf(questionID)
}

// IsFlagged reports whether a question is flagged
func (c *Controller) IsFlagged(questionID string) bool {
	return c.store.IsFlagged(questionID)
}

// Summary counts answered, flagged and unanswered questions
func (c *Controller) Summary() Summary {
	s := Summary{Total: len(c.questions)}
	for _, q := range c.questions {
		switch c.store.StatusOf(q.ID) {
		case StatusAnswered:
			s.Answered++
		case StatusFlagged:
			s.Flagged++
		default:
			s.Unanswered++
		}
	}
	return s
}

// ConfirmOpen reports whether the submit confirmation prompt is showing
func (c *Controller) ConfirmOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmOpen
}

// LastSweep returns the last settled sweep, nil before the first
func (c *Controller) LastSweep() *SweepResult {
	return c.coordinator.LastResult()
}

func (c *Controller) navigableLocked() error {
	switch c.state {
	case StateActive, StateSubmitting:
		return nil
	case StateDone:
		return ErrSessionDone
	}
	return ErrNotActive
}

func (c *Controller) editableLocked() error {
	switch c.state {
	case StateActive:
		return nil
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateDone:
		return ErrSessionDone
	}
	return ErrNotActive
}

func (c *Controller) moveLocked(target int) int {
	if target < 0 {
		target = 0
	}
	if target > len(c.questions)-1 {
		target = len(c.questions) - 1
	}
	c.index = target
	return target
}

// Goto jumps to question i, clamped to the question range
func (c *Controller) Goto(i int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.navigableLocked(); err != nil {
		return c.index, err
	}
	return c.moveLocked(i), nil
}

// Next moves forward one question, staying on the last one
func (c *Controller) Next() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.navigableLocked(); err != nil {
		return c.index, err
	}
	return c.moveLocked(c.index + 1), nil
}

// Prev moves back one question, staying on the first one
func (c *Controller) Prev() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.navigableLocked(); err != nil {
		return c.index, err
	}
	return c.moveLocked(c.index - 1), nil
}

// Answer stores value for the current question
func (c *Controller) Answer(value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.store.Upsert(c.questions[c.index].ID, value)
	return nil
}

// SelectOption answers the current multiple choice question with option n (1-based)
func (c *Controller) SelectOption(n int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return "", err
	}
	q := c.questions[c.index]
	if q.Type != model.QuestionTypeMCQ {
		return "", ErrNotMultipleChoice
	}
	if n < 1 || n > len(q.Options) {
		return "", fmt.Errorf("%w: %d", ErrNoSuchOption, n)
	}
	option := q.Options[n-1]
	c.store.Upsert(q.ID, option)
	return option, nil
}

// ToggleFlag flips the flag on the current question
func (c *Controller) ToggleFlag() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return false, err
	}
	return c.store.ToggleFlag(c.questions[c.index].ID), nil
}

// RequestSubmit opens the confirmation prompt
func (c *Controller) RequestSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if c.errFromRemote {
		return ErrBlocked
	}
	c.confirmOpen = true
	return nil
}

// CancelSubmit closes the confirmation prompt
func (c *Controller) CancelSubmit() {
	c.mu.Lock()
	c.confirmOpen = false
	c.mu.Unlock()
}

// ConfirmSubmit runs the sweep and waits for it. On success the user is
// sent to results after ResultsDelay. When every answer fails the session
// returns to active with an error so the user can retry, unless the
// deadline passed meanwhile; then the session ends as on expiry.
func (c *Controller) ConfirmSubmit(ctx context.Context) error {
	c.mu.Lock()
	blocked := c.errFromRemote
	c.mu.Unlock()
	if blocked {
		return ErrBlocked
	}
	return c.runSweep(ctx, "confirmed", true)
}

// onExpire starts the expiry sweep without waiting for it. The sweep is
// detached from runCtx so Close does not cancel submissions in flight. When
// a confirmed sweep is already running, that sweep finishes the session.
func (c *Controller) onExpire() {
	c.mu.Lock()
	ctx := context.WithoutCancel(c.runCtx)
	c.mu.Unlock()

	log.Printf("[Session] Time is up")
	go func() {
		if err := c.runSweep(ctx, "expired", false); err != nil && !errors.Is(err, ErrSubmitInProgress) && !errors.Is(err, ErrSessionDone) {
			log.Printf("[Session] Expiry submission: %v", err)
		}
	}()
}

func (c *Controller) runSweep(ctx context.Context, trigger string, confirmed bool) error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = StateSubmitting
	done := make(chan struct{})
	c.sweepDone = done
	c.mu.Unlock()
	defer close(done)

	log.Printf("[Session] Submitting all answers (%s)", trigger)
	_, err := c.coordinator.SubmitAll(ctx)
	if errors.Is(err, ErrSweepInFlight) {
		c.mu.Lock()
		if c.state == StateSubmitting {
			c.state = StateActive
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.confirmOpen = false
	if confirmed && errors.Is(err, ErrAllSubmissionsFailed) && !c.clock.Expired() {
		if c.state == StateSubmitting {
			c.state = StateActive
		}
		c.errMsg = SubmitFailedMessage
		c.errFromRemote = false
		c.mu.Unlock()
		return err
	}
	if c.state == StateSubmitting {
		c.state = StateDone
	}
	c.scheduleResultsLocked()
	c.mu.Unlock()

	c.reconciler.Trigger()
	return err
}

// Unload is the tab-close path: it dispatches a sweep without waiting.
// The returned channel closes when that sweep settles. While another sweep
// is running it returns that sweep's channel instead; it is nil when there
// is nothing to wait for. Delivery is best effort.
func (c *Controller) Unload() <-chan struct{} {
	c.mu.Lock()
	if c.state == StateSubmitting && c.sweepDone != nil {
		done := c.sweepDone
		c.mu.Unlock()
		return done
	}
	if c.state != StateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = StateSubmitting
	c.mu.Unlock()

	log.Printf("[Session] Unloading, submitting current answers")
	done, err := c.coordinator.Dispatch(context.Background())
	if err != nil {
		c.mu.Lock()
		if c.state == StateSubmitting {
			c.state = StateActive
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Lock()
	c.sweepDone = done
	c.mu.Unlock()

	go func() {
		<-done
		c.mu.Lock()
		if c.state == StateSubmitting {
			c.state = StateDone
		}
		c.mu.Unlock()
	}()
	return done
}

func (c *Controller) handleAction(a Action) {
	switch a.Kind {
	case ActionContinue:
		c.mu.Lock()
		if c.errFromRemote {
			c.errMsg = ""
			c.errFromRemote = false
		}
		c.warning = a.Warning
		if a.Progress != nil {
			c.session.Status = a.Progress.Status
		}
		c.mu.Unlock()

	case ActionRedirectResults, ActionRedirectDashboard, ActionRedirectLogin:
		c.mu.Lock()
		c.state = StateDone
		c.mu.Unlock()
		switch a.Kind {
		case ActionRedirectResults:
			c.navigate(ViewResults)
		case ActionRedirectDashboard:
			c.navigate(ViewDashboard)
		default:
			c.navigate(ViewLogin)
		}

	case ActionError:
		c.mu.Lock()
		if c.state != StateDone {
			c.errMsg = a.Message
			c.errFromRemote = true
		}
		c.mu.Unlock()
	}
}
