package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"compclient/internal/model"
	"compclient/internal/session"
)

// SessionControl is what the session commands drive
type SessionControl interface {
	Next() (int, error)
	Prev() (int, error)
	Goto(i int) (int, error)
	Index() int
	QuestionCount() int
	Questions() []model.Question
	Current() (model.Question, bool)
	CurrentAnswer() string

	Answer(value string) error
	SelectOption(n int) (string, error)
	ToggleFlag() (bool, error)
	StatusOf(questionID string) session.QuestionStatus
	Summary() session.Summary

	Countdown() string
	Err() string
	Warning() string
	State() session.State

	RequestSubmit() error
	CancelSubmit()
	ConfirmSubmit(ctx context.Context) error
	ConfirmOpen() bool
}

const sessionHelp = `Commands:
  show              show the current question
  next | prev       move between questions
  goto N            jump to question N
  answer TEXT       answer the current question (\n for a new line)
  choose N          pick option N of a multiple choice question
  flag              flag or unflag the current question
  status            time remaining and question overview
  submit            submit all answers (asks for confirmation)
  confirm | cancel  answer the confirmation
  quit              submit what you have and exit`

// SessionCommands parses and runs one line of session input
type SessionCommands struct {
	ctrl SessionControl
}

func NewSessionCommands(ctrl SessionControl) *SessionCommands {
	return &SessionCommands{ctrl: ctrl}
}

// Handle runs line and returns the text to print. quit is set when the user
// asked to leave.
func (s *SessionCommands) Handle(ctx context.Context, line string) (out string, quit bool) {
	cmd, arg := splitCommand(line)
	switch cmd {
	case "":
		return "", false
	case "help", "h", "?":
		return sessionHelp, false
	case "show":
		return RenderQuestion(s.ctrl), false
	case "next", "n":
		return s.move(s.ctrl.Next()), false
	case "prev", "p":
		return s.move(s.ctrl.Prev()), false
	case "goto", "g":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "Usage: goto N", false
		}
		return s.move(s.ctrl.Goto(n - 1)), false
	case "answer", "a":
		if err := s.ctrl.Answer(strings.ReplaceAll(arg, `\n`, "\n")); err != nil {
			return s.describe(err), false
		}
		return "Answer saved.", false
	case "choose", "c":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "Usage: choose N", false
		}
		option, err := s.ctrl.SelectOption(n)
		if err != nil {
			return s.describe(err), false
		}
		return fmt.Sprintf("Selected: %s", option), false
	case "flag", "f":
		flagged, err := s.ctrl.ToggleFlag()
		if err != nil {
			return s.describe(err), false
		}
		if flagged {
			return "Question flagged.", false
		}
		return "Flag removed.", false
	case "status", "s":
		return RenderStatus(s.ctrl), false
	case "submit":
		if err := s.ctrl.RequestSubmit(); err != nil {
			return s.describe(err), false
		}
		sum := s.ctrl.Summary()
		return fmt.Sprintf("Submit all answers? %d answered, %d flagged, %d unanswered.\nType 'confirm' to submit or 'cancel' to keep working.",
			sum.Answered, sum.Flagged, sum.Unanswered), false
	case "confirm":
		if !s.ctrl.ConfirmOpen() {
			return "Nothing to confirm. Type 'submit' first.", false
		}
		if err := s.ctrl.ConfirmSubmit(ctx); err != nil {
			return s.describe(err), false
		}
		return "Answers submitted. Taking you to the results...", false
	case "cancel":
		s.ctrl.CancelSubmit()
		return "Submission cancelled.", false
	case "quit", "exit":
		return "Submitting your answers and exiting...", true
	}
	return fmt.Sprintf("Unknown command %q. Type 'help' for commands.", cmd), false
}

func (s *SessionCommands) move(_ int, err error) string {
	if err != nil {
		return s.describe(err)
	}
	return RenderQuestion(s.ctrl)
}

func (s *SessionCommands) describe(err error) string {
	switch {
	case errors.Is(err, session.ErrSubmitInProgress):
		return "Submission in progress."
	case errors.Is(err, session.ErrSessionDone):
		return "The session is over."
	case errors.Is(err, session.ErrNotActive):
		return "The session is not active."
	case errors.Is(err, session.ErrBlocked):
		return s.ctrl.Err()
	case errors.Is(err, session.ErrAllSubmissionsFailed):
		return session.SubmitFailedMessage
	case errors.Is(err, session.ErrNotMultipleChoice):
		return "This question is not multiple choice. Use 'answer'."
	case errors.Is(err, session.ErrNoSuchOption):
		return "No such option."
	}
	return err.Error()
}

func splitCommand(line string) (cmd, arg string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	parts := strings.SplitN(line, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}
