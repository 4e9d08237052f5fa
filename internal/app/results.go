package app

import (
	"context"
	"fmt"
	"log"

	"compclient/internal/model"
)

// ResultsAPI is the slice of the backend the results view reads
type ResultsAPI interface {
	Progress(ctx context.Context) (*model.Participation, error)
}

// Results renders the post-competition thank-you page
type Results struct {
	api ResultsAPI
}

func NewResults(resultsAPI ResultsAPI) *Results {
	return &Results{api: resultsAPI}
}

// Lines returns the text of the results page. Scoring is not shown; the
// recorded answer count is added when the backend still has the participation.
func (r *Results) Lines(ctx context.Context) []string {
	lines := []string{
		"Thank You for Participating!",
		"Your participation has been recorded. Results will be announced soon.",
	}

	p, err := r.api.Progress(ctx)
	if err != nil {
		log.Printf("[Results] Could not load participation: %v", err)
		return append(lines, "Type 'dashboard' to go back.")
	}
	lines = append(lines, fmt.Sprintf("Answers recorded: %d of %d", len(p.Answers), len(p.QuestionIDs)))
	return append(lines, "Type 'dashboard' to go back.")
}
