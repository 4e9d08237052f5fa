package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"compclient/internal/model"
	"compclient/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrEntryClosed     = errors.New("competition entry period has ended")
	ErrAlreadyStarted  = errors.New("competition already started")
	ErrNoParticipation = errors.New("no participation found")
	ErrCompleted       = errors.New("competition already completed")
	ErrUnknownQuestion = errors.New("question is not part of this competition")
	ErrNoQuestions     = errors.New("no questions available")
)

// submitGrace keeps a participation open briefly past its deadline so a client
// sweep that fired right at the deadline still lands
const submitGrace = 30 * time.Second

// Window is the competition schedule
type Window struct {
	Start       time.Time
	EntryWindow time.Duration
	Length      time.Duration
}

func (w Window) EntranceDeadline() time.Time {
	return w.Start.Add(w.EntryWindow)
}

func (w Window) AbsoluteEnd() time.Time {
	return w.EntranceDeadline().Add(w.Length)
}

// Phase returns the competition phase at now
func (w Window) Phase(now time.Time) model.CompetitionPhase {
	switch {
	case now.Before(w.Start):
		return model.PhaseUpcoming
	case now.Before(w.EntranceDeadline()):
		return model.PhaseInProgressCanEnter
	case now.Before(w.AbsoluteEnd()):
		return model.PhaseInProgressCannotEnter
	}
	return model.PhaseCompleted
}

// CompetitionService runs the competition window and participations
type CompetitionService struct {
	window         Window
	participations repository.ParticipationRepo
	questions      repository.QuestionRepo
	broadcaster    Broadcaster
	now            func() time.Time
}

func NewCompetitionService(window Window, participations repository.ParticipationRepo, questions repository.QuestionRepo) *CompetitionService {
	return &CompetitionService{
		window:         window,
		participations: participations,
		questions:      questions,
		broadcaster:    nopBroadcaster{},
		now:            time.Now,
	}
}

// SetBroadcaster sets the status notice sink
func (s *CompetitionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Config describes the window as seen now
func (s *CompetitionService) Config() model.CompetitionConfig {
	now := s.now()
	return model.CompetitionConfig{
		StartTime:         s.window.Start,
		EntranceDeadline:  s.window.EntranceDeadline(),
		AbsoluteEndTime:   s.window.AbsoluteEnd(),
		CompetitionLength: int(s.window.Length / time.Second),
		Status:            s.window.Phase(now),
		CurrentServerTime: now,
	}
}

// Status returns the participant status, finalizing expired participations
func (s *CompetitionService) Status(ctx context.Context, userID string) (*model.StatusResponse, error) {
	p, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &model.StatusResponse{Status: model.StatusNotStarted}, nil
	}
	return &model.StatusResponse{Status: p.Status, ParticipationID: p.ID}, nil
}

// Start opens a participation with the full question set
func (s *CompetitionService) Start(ctx context.Context, userID string) (*model.StartResponse, error) {
	now := s.now()
	if s.window.Phase(now) != model.PhaseInProgressCanEnter {
		return nil, ErrEntryClosed
	}

	existing, err := s.participations.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyStarted
	}

	questions, err := s.questions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	p := &model.Participation{
		ID:          uuid.New().String(),
		UserID:      userID,
		StartTime:   now,
		EndTime:     now.Add(s.window.Length),
		Status:      model.StatusInProgress,
		QuestionIDs: ids,
	}
	if err := s.participations.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyStarted
		}
		return nil, err
	}
	log.Printf("[Competition] User %s started participation %s (%d questions)", userID, p.ID, len(ids))
	s.notify(p)

	return &model.StartResponse{Participation: *p, Questions: questions}, nil
}

// Submit records one answer. Resubmitting replaces the previous answer.
func (s *CompetitionService) Submit(ctx context.Context, userID, questionID string, req model.SubmitAnswerRequest) (*model.SubmitAck, error) {
	p, err := s.participations.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoParticipation
	}

	now := s.now()
	if p.Status == model.StatusCompleted || !now.Before(closesAt(p)) {
		if _, err := s.finalize(ctx, p); err != nil {
			return nil, err
		}
		return nil, ErrCompleted
	}
	if !containsID(p.QuestionIDs, questionID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}

	answer := model.SubmittedAnswer{Answer: req.Answer, Timestamp: req.Timestamp, ReceivedAt: now}
	if err := s.participations.SaveAnswer(ctx, p.ID, questionID, answer); err != nil {
		return nil, err
	}
	// re-read so answers saved by concurrent submits count too
	if fresh, err := s.participations.GetByUser(ctx, userID); err == nil && fresh != nil {
		p = fresh
	}

	if p.Status == model.StatusInProgress && len(p.Answers) >= len(p.QuestionIDs) {
		if _, err := s.finalize(ctx, p); err != nil {
			return nil, err
		}
	}

	return &model.SubmitAck{
		Success:    true,
		QuestionID: questionID,
		ReceivedAt: now,
		Status:     p.Status,
	}, nil
}

// Progress returns the participation snapshot
func (s *CompetitionService) Progress(ctx context.Context, userID string) (*model.Participation, error) {
	p, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoParticipation
	}
	return p, nil
}

// Questions returns the participation's questions in their original order
func (s *CompetitionService) Questions(ctx context.Context, userID string) ([]model.Question, error) {
	p, err := s.participations.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoParticipation
	}
	return s.questions.GetByIDs(ctx, p.QuestionIDs)
}

// current loads the participation and completes it once its deadline passed
func (s *CompetitionService) current(ctx context.Context, userID string) (*model.Participation, error) {
	p, err := s.participations.GetByUser(ctx, userID)
	if err != nil || p == nil {
		return p, err
	}
	if p.Status == model.StatusInProgress && !s.now().Before(closesAt(p)) {
		if _, err := s.finalize(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// finalize marks p completed; it reports whether this call changed it
func (s *CompetitionService) finalize(ctx context.Context, p *model.Participation) (bool, error) {
	if p.Status == model.StatusCompleted {
		return false, nil
	}
	at := s.now()
	if err := s.participations.Complete(ctx, p.ID, at); err != nil {
		return false, err
	}
	p.Status = model.StatusCompleted
	p.CompletedAt = &at
	log.Printf("[Competition] Participation %s completed (%d/%d answered)", p.ID, len(p.Answers), len(p.QuestionIDs))
	s.notify(p)
	return true, nil
}

func (s *CompetitionService) notify(p *model.Participation) {
	s.broadcaster.NotifyStatus(p.UserID, model.StatusNotice{
		UserID:          p.UserID,
		ParticipationID: p.ID,
		Status:          p.Status,
		At:              s.now(),
	})
}

func closesAt(p *model.Participation) time.Time {
	return p.EndTime.Add(submitGrace)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
