package model

import (
	"errors"
	"fmt"
)

// QuestionType defines the type of question
type QuestionType string

const (
	QuestionTypeMCQ  QuestionType = "mcq"  // Multiple choice, answer is the option text
	QuestionTypeCode QuestionType = "code" // Free-form code, answer is the source text
)

// Question is immutable for the lifetime of a session once fetched
type Question struct {
	ID       string       `json:"_id" bson:"_id"`
	Type     QuestionType `json:"type" bson:"type"`
	Text     string       `json:"text" bson:"text"`
	Options  []string     `json:"options,omitempty" bson:"options,omitempty"`   // MCQ only
	Points   int          `json:"points" bson:"points"`
	Language string       `json:"language,omitempty" bson:"language,omitempty"` // Code only

	// Correct is never sent to participants
	Correct string `json:"-" bson:"correct,omitempty"`
}

var ErrInvalidQuestion = errors.New("invalid question")

// Validate checks the structural rules a question must satisfy
func (q *Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if q.Points <= 0 {
		return fmt.Errorf("%w: %s has non-positive points", ErrInvalidQuestion, q.ID)
	}
	switch q.Type {
	case QuestionTypeMCQ:
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: %s has no options", ErrInvalidQuestion, q.ID)
		}
	case QuestionTypeCode:
	default:
		return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidQuestion, q.ID, q.Type)
	}
	return nil
}

// DisplayLanguage returns the editor language, javascript when unset
func (q *Question) DisplayLanguage() string {
	if q.Language == "" {
		return "javascript"
	}
	return q.Language
}
