package cli

import (
	"fmt"
	"strings"
	"time"

	"compclient/internal/app"
	"compclient/internal/model"
	"compclient/internal/session"
)

var statusMarks = map[session.QuestionStatus]string{
	session.StatusAnswered:   "*",
	session.StatusFlagged:    "?",
	session.StatusUnanswered: " ",
}

// RenderQuestion shows the current question with its answer
func RenderQuestion(ctrl SessionControl) string {
	q, ok := ctrl.Current()
	if !ok {
		return session.NoQuestionsMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question %d / %d  [%s]  %d pts", ctrl.Index()+1, ctrl.QuestionCount(), ctrl.StatusOf(q.ID), q.Points)
	if countdown := ctrl.Countdown(); countdown != "" {
		fmt.Fprintf(&b, "  %s", countdown)
	}
	fmt.Fprintf(&b, "\n%s\n", q.Text)

	answer := ctrl.CurrentAnswer()
	switch q.Type {
	case model.QuestionTypeMCQ:
		for i, opt := range q.Options {
			mark := " "
			if opt == answer {
				mark = ">"
			}
			fmt.Fprintf(&b, " %s %d) %s\n", mark, i+1, opt)
		}
	default:
		fmt.Fprintf(&b, "Language: %s\n", q.DisplayLanguage())
		if answer == "" {
			b.WriteString("(no answer yet)\n")
		} else {
			b.WriteString("Your answer:\n")
			b.WriteString(answer)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderStatus shows the countdown, messages and the question grid
func RenderStatus(ctrl SessionControl) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time remaining: %s\n", ctrl.Countdown())
	if msg := ctrl.Err(); msg != "" {
		fmt.Fprintf(&b, "Error: %s\n", msg)
	}
	if w := ctrl.Warning(); w != "" {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}

	current := ctrl.Index()
	for i, q := range ctrl.Questions() {
		cursor := " "
		if i == current {
			cursor = ">"
		}
		fmt.Fprintf(&b, "%s[%s] %d", cursor, statusMarks[ctrl.StatusOf(q.ID)], i+1)
		if i < len(ctrl.Questions())-1 {
			b.WriteString(" ")
		}
	}
	sum := ctrl.Summary()
	fmt.Fprintf(&b, "\n%d answered, %d flagged, %d unanswered", sum.Answered, sum.Flagged, sum.Unanswered)
	return b.String()
}

// RenderOverview shows the dashboard for one overview
func RenderOverview(o *app.Overview, countdown string) string {
	var b strings.Builder
	b.WriteString("Competition Dashboard\n")
	switch model.CompetitionPhase(o.Phase()) {
	case model.PhaseUpcoming:
		fmt.Fprintf(&b, "Competition starts at %s\n", formatTime(o.Config.StartTime))
		if countdown != "" {
			fmt.Fprintf(&b, "Starts in: %s\n", countdown)
		}
	case model.PhaseInProgressCanEnter:
		b.WriteString("The competition is open.\n")
		if countdown != "" {
			fmt.Fprintf(&b, "Time remaining to enter: %s\n", countdown)
		}
		fmt.Fprintf(&b, "Entry deadline: %s\n", formatTime(o.Config.EntranceDeadline))
		fmt.Fprintf(&b, "Session length: %s\n", o.Config.Length())
		b.WriteString("Type 'start' to begin. Your timer starts immediately and cannot be paused.\n")
	case model.PhaseInProgressCannotEnter:
		b.WriteString("The competition is in progress but the entry period has ended.\n")
		if o.Config.NextStartTime != nil {
			fmt.Fprintf(&b, "Next competition starts at %s\n", formatTime(*o.Config.NextStartTime))
		}
	case model.PhaseCompleted:
		b.WriteString("You have completed the competition. Type 'results' to view your results.\n")
	case model.CompetitionPhase(model.StatusInProgress), model.CompetitionPhase(model.StatusActive):
		if o.Conflict {
			fmt.Fprintf(&b, "%s\n", session.ConflictMessage)
		} else {
			b.WriteString("You have a competition session running. Type 'resume' to continue it.\n")
		}
	default:
		b.WriteString("Unable to determine competition status. Please try again later.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Not set"
	}
	return t.Local().Format("January 2, 2006 3:04 PM MST")
}
