package session

import (
	"sort"
	"sync"

	"compclient/internal/model"
)

// QuestionStatus drives the per-question indicator
type QuestionStatus string

const (
	StatusAnswered   QuestionStatus = "answered"
	StatusFlagged    QuestionStatus = "flagged"
	StatusUnanswered QuestionStatus = "unanswered"
)

// AnswerStore maps question ids to the current answer plus a flag set.
// Pure local state.
type AnswerStore struct {
	mu      sync.RWMutex
	answers map[string]string
	flags   map[string]struct{}
}

// NewAnswerStore creates an empty store
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers: make(map[string]string),
		flags:   make(map[string]struct{}),
	}
}

// Upsert replaces the stored value unconditionally
func (s *AnswerStore) Upsert(questionID, value string) {
	s.mu.Lock()
	s.answers[questionID] = value
	s.mu.Unlock()
}

// Value returns the stored answer, empty when none
func (s *AnswerStore) Value(questionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers[questionID]
}

// ToggleFlag inverts flag membership and returns the new membership
func (s *AnswerStore) ToggleFlag(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[questionID]; ok {
		delete(s.flags, questionID)
		return false
	}
	s.flags[questionID] = struct{}{}
	return true
}

// IsFlagged reports flag membership
func (s *AnswerStore) IsFlagged(questionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[questionID]
	return ok
}

// StatusOf: answered beats flagged beats unanswered
func (s *AnswerStore) StatusOf(questionID string) QuestionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.answers[questionID] != "" {
		return StatusAnswered
	}
	if _, ok := s.flags[questionID]; ok {
		return StatusFlagged
	}
	return StatusUnanswered
}

// Snapshot copies every stored answer, ordered by question id
func (s *AnswerStore) Snapshot() []model.Answer {
	s.mu.RLock()
	out := make([]model.Answer, 0, len(s.answers))
	for id, v := range s.answers {
		out = append(out, model.Answer{QuestionID: id, Value: v})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

// AnsweredCount counts answers with a non-empty value
func (s *AnswerStore) AnsweredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.answers {
		if v != "" {
			n++
		}
	}
	return n
}
