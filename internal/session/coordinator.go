package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"compclient/internal/model"

	"golang.org/x/sync/errgroup"
)

var (
	ErrSweepInFlight        = errors.New("submission sweep already in flight")
	ErrAllSubmissionsFailed = errors.New("every submission in the sweep failed")
)

const defaultMaxParallel = 8

// Submitter sends one answer to the backend
type Submitter interface {
	SubmitAnswer(ctx context.Context, questionID, answer string, ts time.Time) (*model.SubmitAck, error)
}

// SweepResult is the settled outcome of one sweep
type SweepResult struct {
	Outcomes   map[string]model.SubmissionOutcome
	Attempted  int
	Sent       int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// AllFailed reports whether at least one answer was attempted and none landed
func (r *SweepResult) AllFailed() bool {
	return r.Attempted > 0 && r.Sent == 0
}

// Coordinator runs submission sweeps over the answer store, one at a time
type Coordinator struct {
	store       *AnswerStore
	submitter   Submitter
	now         func() time.Time
	maxParallel int

	mu    sync.Mutex
	state model.SweepState
	last  *SweepResult
	runs  int
}

// NewCoordinator creates a coordinator reading from store
func NewCoordinator(store *AnswerStore, submitter Submitter) *Coordinator {
	return &Coordinator{
		store:       store,
		submitter:   submitter,
		now:         time.Now,
		maxParallel: defaultMaxParallel,
	}
}

// State returns the state of the current or last sweep
func (c *Coordinator) State() model.SweepState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult returns the most recently settled sweep, nil before the first
func (c *Coordinator) LastResult() *SweepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Sweeps counts sweeps started so far
func (c *Coordinator) Sweeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.SweepInFlight {
		return false
	}
	c.state = model.SweepInFlight
	c.runs++
	return true
}

func (c *Coordinator) finish(result *SweepResult) {
	c.mu.Lock()
	c.state = model.SweepDone
	c.last = result
	c.mu.Unlock()
}

// SubmitAll sends every non-empty answer and waits for all attempts to settle.
// A call while another sweep is in flight returns ErrSweepInFlight without
// submitting anything. Per-question failures are logged and counted; when
// every attempt fails the result comes back with ErrAllSubmissionsFailed.
func (c *Coordinator) SubmitAll(ctx context.Context) (*SweepResult, error) {
	if !c.begin() {
		log.Printf("[Sweep] Skipped: a sweep is already in flight")
		return nil, ErrSweepInFlight
	}
	result := c.sweep(ctx)
	c.finish(result)

	if result.AllFailed() {
		return result, ErrAllSubmissionsFailed
	}
	return result, nil
}

// Dispatch starts a sweep without waiting for it. The sweep runs on a
// context detached from ctx's cancellation, so it keeps going while the
// caller tears down; it may still be abandoned if the process exits first.
// The returned channel closes when the sweep settles.
func (c *Coordinator) Dispatch(ctx context.Context) (<-chan struct{}, error) {
	if !c.begin() {
		log.Printf("[Sweep] Dispatch skipped: a sweep is already in flight")
		return nil, ErrSweepInFlight
	}
	done := make(chan struct{})
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		c.finish(c.sweep(detached))
	}()
	return done, nil
}

func (c *Coordinator) sweep(ctx context.Context) *SweepResult {
	result := &SweepResult{
		Outcomes:  make(map[string]model.SubmissionOutcome),
		StartedAt: c.now(),
	}

	var pending []model.Answer
	for _, a := range c.store.Snapshot() {
		if !a.HasResponse() {
			continue
		}
		pending = append(pending, a)
		result.Outcomes[a.QuestionID] = model.OutcomePending
	}
	result.Attempted = len(pending)
	log.Printf("[Sweep] Submitting %d answers", result.Attempted)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.maxParallel)
	for _, a := range pending {
		a := a
		g.Go(func() error {
			_, err := c.submitter.SubmitAnswer(ctx, a.QuestionID, a.Value, c.now())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[Sweep] WARNING: Failed to submit answer for question %s: %v", a.QuestionID, err)
				result.Outcomes[a.QuestionID] = model.OutcomeFailed
				result.Failed++
				return nil
			}
			result.Outcomes[a.QuestionID] = model.OutcomeSent
			result.Sent++
			return nil
		})
	}
	g.Wait()

	result.FinishedAt = c.now()
	log.Printf("[Sweep] Complete: %d sent, %d failed", result.Sent, result.Failed)
	return result
}
